package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pkt.systems/avorun/core"
	"pkt.systems/avorun/internal/appconfig"
	"pkt.systems/avorun/internal/format"
	"pkt.systems/avorun/internal/logx"
	"pkt.systems/avorun/internal/msgio"
	"pkt.systems/avorun/internal/spawn"
	"pkt.systems/avorun/schema"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var binaryPath string
	var workerArgs []string
	var workerEnv []string
	var outputMode string
	cmd := &cobra.Command{
		Use:   "run [runnable.json|-]",
		Short: "Run one runnable in a supervised worker process",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRunnable(cmd, args)
			if err != nil {
				return err
			}

			settings, err := loadRunSettings(cfgPath, binaryPath, workerArgs, workerEnv)
			if err != nil {
				return err
			}

			render, err := newMessageRenderer(outputMode, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			jobID := uuid.NewString()
			log := logx.WithRunnable(logx.WithJob(cmd.Context(), jobID), r)
			ctx := logx.ContextWithJobLogger(cmd.Context(), log, jobID)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Debug("run settings loaded",
				"binary", settings.Spawn.Binary,
				"args", len(settings.Spawn.Args),
				"env", len(settings.Spawn.Env),
				"check_interval", settings.Loop.CheckInterval,
				"status_interval", settings.Loop.StatusInterval)

			orch := core.NewOrchestrator(settings.Loop, spawn.NewLocal(settings.Spawn))

			var final schema.Message
			for msg := range orch.Run(ctx, r) {
				if err := render(msg); err != nil {
					return err
				}
				if msg.Finished() {
					final = msg
				}
			}
			if !final.Finished() {
				log.Warn("run abandoned before a terminal message")
				return ctx.Err()
			}
			log.Info("run finished", "status", final.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&binaryPath, "binary", "", "worker binary path (overrides config)")
	cmd.Flags().StringArrayVar(&workerArgs, "arg", nil, "worker argv (repeatable; overrides config)")
	cmd.Flags().StringArrayVar(&workerEnv, "env", nil, "extra env for the worker (repeatable KEY=VAL)")
	cmd.Flags().StringVar(&outputMode, "format", "jsonl", "message output format (jsonl or plain)")
	return cmd
}

// readRunnable loads the runnable document from the file argument, or from
// stdin when the argument is missing or "-".
func readRunnable(cmd *cobra.Command, args []string) (schema.Runnable, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return schema.Runnable{}, fmt.Errorf("read runnable: %w", err)
	}
	return schema.DecodeRunnable(data)
}

type runSettings struct {
	Spawn spawn.Config
	Loop  core.Config
}

func loadRunSettings(cfgPath, binaryPath string, args, env []string) (runSettings, error) {
	fileCfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return runSettings{}, err
	}
	if strings.TrimSpace(binaryPath) != "" {
		fileCfg.Worker.Binary = binaryPath
	}
	if len(args) > 0 {
		fileCfg.Worker.Args = args
	}
	if len(env) > 0 {
		fileCfg.Worker.Env = mapFromEnv(env)
	}

	spawnArgs := fileCfg.Worker.Args
	if len(spawnArgs) == 0 {
		spawnArgs = nil
	}
	return runSettings{
		Spawn: spawn.Config{
			Binary:    fileCfg.Worker.Binary,
			Args:      spawnArgs,
			Env:       flattenEnv(fileCfg.Worker.Env),
			TermGrace: time.Duration(fileCfg.Worker.TermGraceSeconds * float64(time.Second)),
		},
		Loop: core.Config{
			CheckInterval:  time.Duration(fileCfg.Run.CheckIntervalMs) * time.Millisecond,
			StatusInterval: time.Duration(fileCfg.Run.StatusIntervalMs) * time.Millisecond,
		},
	}, nil
}

// newMessageRenderer picks how run messages reach stdout: raw JSONL for
// schedulers, plain lines for humans.
func newMessageRenderer(mode string, out io.Writer) (func(schema.Message) error, error) {
	switch mode {
	case "jsonl":
		writer := msgio.NewWriter(out)
		return func(m schema.Message) error {
			writer.Put(m)
			return writer.Err()
		}, nil
	case "plain":
		renderer := format.NewPlainRenderer()
		return func(m schema.Message) error {
			lines, err := renderer.FormatMessage(m)
			if err != nil {
				return err
			}
			for _, line := range lines {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", mode)
	}
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}

func mapFromEnv(values []string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = val
	}
	return out
}
