package core

import (
	"context"

	"pkt.systems/avorun/schema"
)

// Spawner creates one isolated worker per run.
type Spawner interface {
	Spawn(ctx context.Context, r schema.Runnable) (WorkerHandle, error)
}

// WorkerHandle supervises a spawned worker.
type WorkerHandle interface {
	// Queue returns the channel the worker's messages arrive on.
	Queue() *Queue
	// Terminate forcibly stops the worker without its cooperation. It
	// returns once termination is under way, not once the worker is gone.
	Terminate() error
	// Alive reports whether the worker is still running.
	Alive() bool
	// Close releases the handle and reaps the worker.
	Close() error
}
