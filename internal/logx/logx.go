package logx

import (
	"context"

	"pkt.systems/avorun/schema"
	"pkt.systems/pslog"
)

type contextKey int

const jobKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithJob annotates the logger with the job id if present.
func WithJob(ctx context.Context, jobID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if jobID != "" {
		if current, ok := ctx.Value(jobKey).(string); ok && current == jobID {
			return log
		}
		log = log.With("job", jobID)
	}
	return log
}

// WithRunnable annotates the logger with runnable metadata when available.
func WithRunnable(log pslog.Logger, r schema.Runnable) pslog.Logger {
	if r.Kind != "" {
		log = log.With("kind", r.Kind)
	}
	if r.URI != "" {
		log = log.With("uri", r.URI)
	}
	return log
}

// ContextWithJob stores the job marker on the context for log de-duplication.
func ContextWithJob(ctx context.Context, jobID string) context.Context {
	if ctx == nil || jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, jobID)
}

// ContextWithJobLogger attaches the logger and job marker to the context.
func ContextWithJobLogger(ctx context.Context, log pslog.Logger, jobID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithJob(ctx, jobID)
}
