//go:build !windows

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/avorun/schema"
)

func writeRunnable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runnable.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write runnable: %v", err)
	}
	return path
}

// missingConfig keeps run tests hermetic: the path never exists, so defaults
// apply regardless of the machine's real config.
func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func execRun(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"run"}, args...))
	return out, root.ExecuteContext(context.Background())
}

func TestRunCmdStreamsWorkerMessages(t *testing.T) {
	script := `printf '%s\n' '{"status":"running","type":"early_state","timeout":5,"time":1}' '{"status":"running","type":"log","text":"mid","time":2}' '{"status":"pass","time":3}'`
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)

	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/bin/sh", "--arg", "-c", "--arg", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	msgs := decodeMessages(t, out.Bytes())
	if len(msgs) < 2 {
		t.Fatalf("expected started and terminal at least, got %v", msgs)
	}
	if msgs[0].Status != schema.StatusStarted {
		t.Fatalf("first message = %+v, want started", msgs[0])
	}
	last := msgs[len(msgs)-1]
	if last.Status != schema.StatusPass {
		t.Fatalf("terminal = %+v, want pass", last)
	}
	sawLog := false
	for _, m := range msgs {
		if m.Type == schema.PayloadEarlyState {
			t.Fatalf("early_state leaked to the consumer: %+v", m)
		}
		if m.Type == schema.PayloadLog && m.Text == "mid" {
			sawLog = true
		}
	}
	if !sawLog {
		t.Fatalf("expected forwarded log message, got %v", msgs)
	}
}

func TestRunCmdHeartbeatsWhileWorkerSilent(t *testing.T) {
	script := `sleep 0.2; printf '%s\n' '{"status":"pass","time":1}'`
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)

	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/bin/sh", "--arg", "-c", "--arg", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	msgs := decodeMessages(t, out.Bytes())
	sawHeartbeat := false
	for _, m := range msgs {
		if m.Status == schema.StatusRunning && m.Type == "" {
			sawHeartbeat = true
		}
	}
	if !sawHeartbeat {
		t.Fatalf("expected a running heartbeat, got %v", msgs)
	}
	if got := msgs[len(msgs)-1].Status; got != schema.StatusPass {
		t.Fatalf("terminal status = %q", got)
	}
}

func TestRunCmdInterruptsOnTimeout(t *testing.T) {
	script := `printf '%s\n' '{"status":"running","type":"early_state","timeout":0.05,"time":1}'; sleep 60`
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/sleeptest.go:SleepTest.test"}`)

	start := time.Now()
	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/bin/sh", "--arg", "-c", "--arg", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout handling took %v", elapsed)
	}
	msgs := decodeMessages(t, out.Bytes())
	last := msgs[len(msgs)-1]
	if last.Status != schema.StatusInterrupted || last.FailReason != "timeout" {
		t.Fatalf("terminal = %+v, want interrupted/timeout", last)
	}
}

func TestRunCmdSurfacesWorkerStderr(t *testing.T) {
	script := `echo oops >&2; printf '%s\n' '{"status":"pass","time":1}'`
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)

	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/bin/sh", "--arg", "-c", "--arg", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	msgs := decodeMessages(t, out.Bytes())
	sawStderr := false
	for _, m := range msgs {
		if m.Type == schema.PayloadStderr && m.Text == "oops" {
			sawStderr = true
		}
	}
	if !sawStderr {
		t.Fatalf("expected stderr message, got %v", msgs)
	}
}

func TestRunCmdReportsSpawnFailure(t *testing.T) {
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)

	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/definitely/not/here")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	msgs := decodeMessages(t, out.Bytes())
	if msgs[0].Status != schema.StatusStarted {
		t.Fatalf("first message = %+v, want started", msgs[0])
	}
	last := msgs[len(msgs)-1]
	if last.Status != schema.StatusError || last.FailClass != "SpawnFailure" {
		t.Fatalf("terminal = %+v, want SpawnFailure", last)
	}
}

func TestRunCmdPlainFormat(t *testing.T) {
	script := `printf '%s\n' '{"status":"pass","time":1}'`
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)

	out, err := execRun(t, path, "-c", missingConfig(t), "--binary", "/bin/sh", "--arg", "-c", "--arg", script, "--format", "plain")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "started") {
		t.Fatalf("expected started line, got %q", text)
	}
	if !strings.Contains(text, "result: pass") {
		t.Fatalf("expected result line, got %q", text)
	}
}

func TestRunCmdRejectsUnknownFormat(t *testing.T) {
	path := writeRunnable(t, `{"kind":"avocado-instrumented","uri":"examples/passtest.go:PassTest.test"}`)
	_, err := execRun(t, path, "-c", missingConfig(t), "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestRunCmdRejectsUnsupportedKind(t *testing.T) {
	path := writeRunnable(t, `{"kind":"exec-test","uri":"whatever"}`)
	_, err := execRun(t, path, "-c", missingConfig(t))
	if err == nil || !strings.Contains(err.Error(), "unsupported runnable kind") {
		t.Fatalf("expected kind error, got %v", err)
	}
}

func TestReadRunnableFromStdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"kind":"avocado-instrumented","uri":"a.go:B.test"}`))
	r, err := readRunnable(cmd, nil)
	if err != nil {
		t.Fatalf("read runnable: %v", err)
	}
	if r.URI != "a.go:B.test" {
		t.Fatalf("unexpected runnable %+v", r)
	}

	cmd = &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"kind":"avocado-instrumented","uri":"a.go:B.test"}`))
	if _, err := readRunnable(cmd, []string{"-"}); err != nil {
		t.Fatalf("read runnable from dash: %v", err)
	}
}

func TestLoadRunSettingsDefaults(t *testing.T) {
	settings, err := loadRunSettings(missingConfig(t), "", nil, nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Spawn.Binary != "" {
		t.Fatalf("expected self-exec default, got %q", settings.Spawn.Binary)
	}
	if settings.Spawn.Args != nil {
		t.Fatalf("expected nil args so the spawner applies its default, got %v", settings.Spawn.Args)
	}
	if settings.Loop.CheckInterval != 10*time.Millisecond {
		t.Fatalf("check interval = %v", settings.Loop.CheckInterval)
	}
	if settings.Loop.StatusInterval != 500*time.Millisecond {
		t.Fatalf("status interval = %v", settings.Loop.StatusInterval)
	}
	if settings.Spawn.TermGrace != 2*time.Second {
		t.Fatalf("term grace = %v", settings.Spawn.TermGrace)
	}
}

func TestLoadRunSettingsMergesFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `config_version: 1
worker:
  binary: /usr/local/bin/avorun
  env:
    A: "1"
  term_grace_seconds: 1.5
run:
  check_interval_ms: 20
  status_interval_ms: 900
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := loadRunSettings(cfgPath, "/bin/sh", []string{"-c", "true"}, []string{"B=2"})
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Spawn.Binary != "/bin/sh" {
		t.Fatalf("flag should override binary, got %q", settings.Spawn.Binary)
	}
	if len(settings.Spawn.Args) != 2 || settings.Spawn.Args[0] != "-c" {
		t.Fatalf("unexpected args %v", settings.Spawn.Args)
	}
	if len(settings.Spawn.Env) != 1 || settings.Spawn.Env[0] != "B=2" {
		t.Fatalf("flag env should replace config env, got %v", settings.Spawn.Env)
	}
	if settings.Spawn.TermGrace != 1500*time.Millisecond {
		t.Fatalf("term grace = %v", settings.Spawn.TermGrace)
	}
	if settings.Loop.CheckInterval != 20*time.Millisecond {
		t.Fatalf("check interval = %v", settings.Loop.CheckInterval)
	}
	if settings.Loop.StatusInterval != 900*time.Millisecond {
		t.Fatalf("status interval = %v", settings.Loop.StatusInterval)
	}
}
