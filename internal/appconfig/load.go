package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file is not an error: defaults apply.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("worker.binary", cfg.Worker.Binary)
	v.SetDefault("worker.args", cfg.Worker.Args)
	v.SetDefault("worker.env", cfg.Worker.Env)
	v.SetDefault("worker.term_grace_seconds", cfg.Worker.TermGraceSeconds)
	v.SetDefault("run.check_interval_ms", cfg.Run.CheckIntervalMs)
	v.SetDefault("run.status_interval_ms", cfg.Run.StatusIntervalMs)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.mode", cfg.Logging.Mode)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.Run.CheckIntervalMs <= 0 {
		return fmt.Errorf("run.check_interval_ms must be positive")
	}
	if cfg.Run.StatusIntervalMs <= 0 {
		return fmt.Errorf("run.status_interval_ms must be positive")
	}
	if cfg.Worker.TermGraceSeconds < 0 {
		return fmt.Errorf("worker.term_grace_seconds must not be negative")
	}
	switch cfg.Logging.Mode {
	case "console", "structured":
	default:
		return fmt.Errorf("unsupported logging.mode %q", cfg.Logging.Mode)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Worker.Binary = expandEnv(cfg.Worker.Binary)
	for i, arg := range cfg.Worker.Args {
		cfg.Worker.Args[i] = expandEnv(arg)
	}
	for key, value := range cfg.Worker.Env {
		cfg.Worker.Env[key] = expandEnv(value)
	}
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
