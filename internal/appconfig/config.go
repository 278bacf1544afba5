package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/avorun/core"
	"pkt.systems/avorun/internal/spawn"
)

// Config is the top-level tool configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Worker        WorkerConfig  `mapstructure:"worker" yaml:"worker"`
	Run           RunConfig     `mapstructure:"run" yaml:"run"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// WorkerConfig configures how worker processes are spawned. An empty binary
// means the tool re-invokes its own executable.
type WorkerConfig struct {
	Binary           string            `mapstructure:"binary" yaml:"binary"`
	Args             []string          `mapstructure:"args" yaml:"args"`
	Env              map[string]string `mapstructure:"env" yaml:"env"`
	TermGraceSeconds float64           `mapstructure:"term_grace_seconds" yaml:"term_grace_seconds"`
}

// RunConfig tunes the supervision loop.
type RunConfig struct {
	CheckIntervalMs  int `mapstructure:"check_interval_ms" yaml:"check_interval_ms"`
	StatusIntervalMs int `mapstructure:"status_interval_ms" yaml:"status_interval_ms"`
}

// LoggingConfig controls the tool's own log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Mode  string `mapstructure:"mode" yaml:"mode"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Worker: WorkerConfig{
			Binary:           "",
			Args:             []string{},
			Env:              map[string]string{},
			TermGraceSeconds: spawn.DefaultTermGrace.Seconds(),
		},
		Run: RunConfig{
			CheckIntervalMs:  int(core.RunCheckInterval / time.Millisecond),
			StatusIntervalMs: int(core.RunStatusInterval / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "console",
		},
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".avorun", "config.yaml"), nil
}
