package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"pkt.systems/avorun/schema"
	"pkt.systems/pslog"
)

// Timing contract shared by orchestrators and their consumers.
const (
	// RunCheckInterval is the queue poll interval.
	RunCheckInterval = 10 * time.Millisecond
	// RunStatusInterval is the minimum spacing between running heartbeats.
	RunStatusInterval = 500 * time.Millisecond
)

// Config adjusts an orchestrator's timing. Zero values take the contract
// defaults above.
type Config struct {
	CheckInterval  time.Duration
	StatusInterval time.Duration
}

// Orchestrator supervises one worker per run and renders the worker's
// lifecycle as an ordered message sequence.
type Orchestrator struct {
	cfg     Config
	spawner Spawner
}

// NewOrchestrator constructs an orchestrator that creates workers through
// spawner.
func NewOrchestrator(cfg Config, spawner Spawner) *Orchestrator {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = RunCheckInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = RunStatusInterval
	}
	return &Orchestrator{cfg: cfg, spawner: spawner}
}

// Run executes the runnable in a fresh worker and returns its message
// sequence. The channel is unbuffered, so production advances only as the
// consumer reads. The sequence opens with started and, as long as the
// consumer keeps reading, closes with exactly one terminal message.
// Cancelling ctx abandons the run: the worker is terminated and the channel
// closes without a terminal message.
func (o *Orchestrator) Run(ctx context.Context, r schema.Runnable) <-chan schema.Message {
	out := make(chan schema.Message)
	go o.run(ctx, r, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, r schema.Runnable, out chan<- schema.Message) {
	log := pslog.Ctx(ctx)
	var handle WorkerHandle

	defer close(out)
	defer func() {
		if handle != nil {
			_ = handle.Close()
		}
	}()
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		reason := fmt.Sprintf("orchestrator fault: %v", rec)
		log.Error("orchestrator loop fault", "err", rec, "uri", r.URI)
		if handle != nil {
			_ = handle.Terminate()
		}
		if o.emit(ctx, out, schema.StderrMessage(reason)) {
			o.emit(ctx, out, schema.FinishedErrorMessage(reason, "OrchestratorFault", string(debug.Stack())))
		}
	}()

	if !o.emit(ctx, out, schema.StartedMessage()) {
		return
	}

	var err error
	handle, err = o.spawner.Spawn(ctx, r)
	if err != nil {
		log.Error("worker spawn failed", "err", err, "uri", r.URI)
		if o.emit(ctx, out, schema.StderrMessage(err.Error())) {
			o.emit(ctx, out, schema.FinishedErrorMessage(err.Error(), "SpawnFailure", ""))
		}
		return
	}
	log.Debug("worker spawned", "uri", r.URI)

	queue := handle.Queue()
	timeStarted := time.Now()
	// timeout stays zero (unbounded) until early_state installs one;
	// nextStatus starts zero so the first idle tick heartbeats right away.
	var timeout time.Duration
	var nextStatus time.Time

	ticker := time.NewTicker(o.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("run cancelled", "uri", r.URI)
			_ = handle.Terminate()
			return
		case <-ticker.C:
		}

		// One dequeue per tick; liveness and timeout only matter while
		// the worker is silent.
		msg, ok := queue.TryGet()
		if !ok {
			now := time.Now()
			if nextStatus.IsZero() || now.After(nextStatus) {
				nextStatus = now.Add(o.cfg.StatusInterval)
				if !o.emit(ctx, out, schema.RunningMessage()) {
					_ = handle.Terminate()
					return
				}
			}
			if timeout > 0 && now.Sub(timeStarted) > timeout {
				log.Info("worker exceeded timeout", "uri", r.URI, "timeout", timeout)
				_ = handle.Terminate()
				o.emit(ctx, out, schema.FinishedMessage(schema.StatusInterrupted, "timeout"))
				return
			}
			continue
		}

		if msg.Type == schema.PayloadEarlyState {
			if msg.Timeout > 0 {
				timeout = time.Duration(msg.Timeout * float64(time.Second))
				log.Debug("worker timeout installed", "uri", r.URI, "timeout", timeout)
			}
			continue
		}

		if !o.emit(ctx, out, msg) {
			_ = handle.Terminate()
			return
		}
		if msg.Finished() {
			return
		}
	}
}

// emit delivers msg to the consumer, honoring cancellation. It reports
// whether delivery happened.
func (o *Orchestrator) emit(ctx context.Context, out chan<- schema.Message, msg schema.Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
