package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "avorun-worker", base: "avorun-worker", want: "worker"},
		{name: "avorun", base: "avorun", want: ""},
		{name: "unrelated", base: "sh", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("%s: argv0Alias(%q) = %q, want %q", tc.name, tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"avorun", "run"}, want: []string{"avorun", "run"}},
		{name: "worker", args: []string{"avorun-worker"}, want: []string{"avorun-worker", "worker"}},
		{name: "worker-path", args: []string{"/usr/bin/avorun-worker"}, want: []string{"/usr/bin/avorun-worker", "worker"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestIsWorkerInvocation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "worker", args: []string{"avorun", "worker"}, want: true},
		{name: "run", args: []string{"avorun", "run"}, want: false},
		{name: "empty", args: nil, want: false},
	}
	for _, tc := range tests {
		if got := isWorkerInvocation(tc.args); got != tc.want {
			t.Fatalf("%s: isWorkerInvocation(%v) = %v, want %v", tc.name, tc.args, got, tc.want)
		}
	}
}

func TestRootHasRun(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "run" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include run")
	}
}

func TestRootHasHiddenWorker(t *testing.T) {
	root := newRootCmd()
	for _, cmd := range root.Commands() {
		if cmd.Name() == "worker" {
			if !cmd.Hidden {
				t.Fatalf("expected worker command to be hidden")
			}
			return
		}
	}
	t.Fatalf("expected root command to include worker")
}

func TestRootHasVersion(t *testing.T) {
	root := newRootCmd()
	found := false
	for _, cmd := range root.Commands() {
		if cmd.Name() == "version" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected root command to include version")
	}
}

func TestVersionCmdPrintsModule(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "pkt.systems/avorun") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestCapabilitiesCmdReportsKindsAndClasses(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"capabilities"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("capabilities: %v", err)
	}

	var caps capabilities
	if err := json.Unmarshal(out.Bytes(), &caps); err != nil {
		t.Fatalf("decode capabilities: %v", err)
	}
	if len(caps.RunnableKinds) != 1 || caps.RunnableKinds[0] != "avocado-instrumented" {
		t.Fatalf("unexpected runnable kinds %v", caps.RunnableKinds)
	}
	for _, name := range caps.Commands {
		if name == "worker" {
			t.Fatalf("hidden worker command listed in %v", caps.Commands)
		}
	}
	hasRun := false
	for _, name := range caps.Commands {
		if name == "run" {
			hasRun = true
		}
	}
	if !hasRun {
		t.Fatalf("expected run in commands, got %v", caps.Commands)
	}
	hasPass := false
	for _, class := range caps.Classes {
		if class == "PassTest" {
			hasPass = true
		}
	}
	if !hasPass {
		t.Fatalf("expected PassTest in classes, got %v", caps.Classes)
	}
}

func TestInitConfigWritesFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init-config", "-o", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	root = newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init-config", "-o", path})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error for existing config")
	}
	root = newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init-config", "-o", path, "--force"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("init-config --force: %v", err)
	}
}
