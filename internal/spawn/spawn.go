// Package spawn creates worker processes for the orchestrator. One policy is
// chosen at startup and applied to every run: execute a worker binary (by
// default the current executable's hidden worker command), hand it the
// runnable as JSON on stdin, and decode the JSONL messages it writes on
// stdout into the run's queue. Stderr lines surface as stderr messages.
package spawn

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"pkt.systems/avorun/core"
	"pkt.systems/avorun/internal/msgio"
	"pkt.systems/avorun/schema"
	"pkt.systems/pslog"
)

// DefaultTermGrace is how long Terminate leaves a worker between the group
// SIGTERM and the follow-up SIGKILL.
const DefaultTermGrace = 2 * time.Second

// Config controls how worker processes are invoked.
type Config struct {
	// Binary is the worker executable. Empty means the current executable.
	Binary string
	// Args are the worker's arguments. Nil means ["worker"].
	Args []string
	// Env holds extra KEY=VAL entries appended to the inherited environment.
	Env []string
	// TermGrace overrides DefaultTermGrace when positive.
	TermGrace time.Duration
}

// Local spawns workers as local child processes. It implements core.Spawner.
type Local struct {
	cfg Config
}

// NewLocal constructs the local spawner.
func NewLocal(cfg Config) *Local {
	if cfg.Args == nil {
		cfg.Args = []string{"worker"}
	}
	if cfg.TermGrace <= 0 {
		cfg.TermGrace = DefaultTermGrace
	}
	return &Local{cfg: cfg}
}

// Spawn starts one worker for the runnable and returns its handle. The child
// gets its own process group so termination reaches anything it forked.
func (l *Local) Spawn(ctx context.Context, r schema.Runnable) (core.WorkerHandle, error) {
	log := pslog.Ctx(ctx)

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode runnable: %w", err)
	}
	binary := l.cfg.Binary
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker binary: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, binary, l.cfg.Args...)
	if len(l.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), l.cfg.Env...)
	}
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	log.Debug("worker started", "pid", cmd.Process.Pid, "binary", binary, "uri", r.URI)

	go func() {
		_, _ = stdin.Write(payload)
		_ = stdin.Close()
	}()

	h := &handle{
		cmd:   cmd,
		queue: core.NewQueue(),
		log:   log,
		grace: l.cfg.TermGrace,
		done:  make(chan struct{}),
	}
	h.pumps.Add(2)
	go h.pumpMessages(stdout)
	go h.pumpStderr(stderr)
	go h.reap()
	return h, nil
}

// handle supervises one spawned worker. It implements core.WorkerHandle.
type handle struct {
	cmd   *exec.Cmd
	queue *core.Queue
	log   pslog.Logger
	grace time.Duration

	pumps sync.WaitGroup
	// done closes once the child is reaped.
	done      chan struct{}
	termOnce  sync.Once
	closeOnce sync.Once
}

// Queue returns the channel the worker's messages arrive on.
func (h *handle) Queue() *core.Queue { return h.queue }

// pumpMessages decodes the worker's stdout JSONL into the queue. Undecodable
// lines are logged and dropped; the stream stays usable.
func (h *handle) pumpMessages(r io.Reader) {
	defer h.pumps.Done()
	reader := msgio.NewReader(r)
	for {
		msg, err := reader.Next(context.Background())
		if err != nil {
			var decodeErr *msgio.DecodeError
			if errors.As(err, &decodeErr) {
				line := string(decodeErr.Line())
				preview := previewText(line, 200)
				h.log.Warn("worker message dropped", "preview", preview, "truncated", len(preview) < len(line), "err", err)
				continue
			}
			if !errors.Is(err, io.EOF) {
				h.log.Warn("worker message stream failed", "err", err)
			}
			return
		}
		h.queue.Put(msg)
	}
}

// pumpStderr surfaces the worker's stderr lines as stderr messages.
func (h *handle) pumpStderr(r io.Reader) {
	defer h.pumps.Done()
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		h.queue.Put(schema.StderrMessage(text))
	}
	if err := scanner.Err(); err != nil {
		h.log.Warn("worker stderr read failed", "err", err)
	}
}

// reap waits for the pumps to drain the pipes, then collects the child.
func (h *handle) reap() {
	h.pumps.Wait()
	err := h.cmd.Wait()
	if err != nil {
		h.log.Debug("worker exited", "pid", h.cmd.Process.Pid, "err", err)
	}
	close(h.done)
}

// Terminate stops the worker without its cooperation: SIGTERM to the process
// group now, SIGKILL after the grace period for workers that ignore it. It
// returns once the signalling is under way, not once the worker is gone.
func (h *handle) Terminate() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	h.termOnce.Do(func() {
		h.log.Debug("terminating worker", "pid", h.cmd.Process.Pid, "grace", h.grace)
		terminateProcess(h.cmd, h.grace)
	})
	return nil
}

// Alive reports whether the worker has been reaped yet.
func (h *handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Close releases the handle: a worker still running is killed outright, then
// the child is reaped. Queued messages stay readable afterwards.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		if h.Alive() {
			killProcess(h.cmd)
		}
		<-h.done
	})
	return nil
}

func previewText(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max]
}
