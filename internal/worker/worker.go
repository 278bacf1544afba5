// Package worker is the body of a worker process: it loads the runnable's
// test unit, runs it, and reports the run as an ordered message sequence.
// Faults never escape; whatever happens, the sequence ends with exactly one
// terminal message.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"pkt.systems/avorun/internal/cover"
	"pkt.systems/avorun/schema"
	"pkt.systems/avorun/unit"
	"pkt.systems/avorun/varianter"
	"pkt.systems/pslog"
)

// Sink receives the worker's messages.
type Sink interface {
	Put(schema.Message)
}

// Run executes the runnable's test unit inside the current process, writing
// the message sequence to sink. It never panics and never returns an error:
// every fault collapses into a stderr message plus a terminal error message.
func Run(ctx context.Context, r schema.Runnable, sink Sink) {
	defer func() {
		if rec := recover(); rec != nil {
			reason := fmt.Sprintf("worker fault: %v", rec)
			trace := string(debug.Stack())
			sink.Put(schema.StderrMessage(reason + "\n" + trace))
			sink.Put(schema.FinishedErrorMessage(reason, "WorkerFault", trace))
		}
	}()
	if err := run(ctx, r, sink); err != nil {
		sink.Put(schema.StderrMessage(err.Error()))
		sink.Put(schema.FinishedErrorMessage(err.Error(), failClass(err), ""))
	}
}

func run(ctx context.Context, r schema.Runnable, sink Sink) error {
	if err := r.Validate(); err != nil {
		return err
	}
	modulePath, className, methodName, err := schema.SplitURI(r.URI)
	if err != nil {
		return err
	}

	resultsDir := r.OutputDir
	if resultsDir == "" {
		resultsDir, err = os.MkdirTemp("", ".avorun-task")
		if err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	} else if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	logger := pslog.NewWithOptions(
		logWriter(r.Config, sink),
		logOptions(schema.ConfigString(r.Config, schema.KeyLogLevel, "DEBUG")),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)

	if schema.ConfigBool(r.Config, schema.KeyCoverage, false) {
		cover.Start(logger)
		defer cover.Stop(logger, resultsDir)
	}

	desc := unit.Descriptor{
		Name:       unit.NewTestID(r.URI, r.Variant),
		Class:      className,
		Method:     methodName,
		ModulePath: modulePath,
		Config:     r.Config,
		Params:     varianter.Rebuild(r.Variant),
		Tags:       r.Tags,
		ResultsDir: resultsDir,
	}
	u, err := unit.Load(desc)
	if err != nil {
		return err
	}

	early := u.State()
	sink.Put(schema.EarlyStateMessage(early.Timeout, early.Class, early.Name))
	logger.Debug("unit loaded", "name", early.Name, "class", early.Class, "timeout", early.Timeout)

	u.Run(ctx)

	st := u.State()
	if st.Whiteboard != "" {
		sink.Put(schema.WhiteboardMessage(st.Whiteboard))
	}
	status := st.Status
	if !status.Finished() {
		status = schema.StatusError
		if st.FailReason == "" {
			st.FailReason = "unit reported no terminal status"
		}
		if st.FailClass == "" {
			st.FailClass = "WorkerFault"
		}
	}
	sink.Put(schema.Message{
		Status:     status,
		FailReason: st.FailReason,
		FailClass:  st.FailClass,
		Traceback:  st.Traceback,
		ClassName:  st.Class,
		Time:       schema.Now(),
	})
	return nil
}

// logWriter picks the destination for the unit's log records:
// job.run.store_logging_stream forwards them through the channel,
// "test" in core.show mirrors them to the worker's stderr.
func logWriter(cfg map[string]any, sink Sink) io.Writer {
	forward := schema.ConfigBool(cfg, schema.KeyStoreLoggingStream, true)
	mirror := schema.ConfigHasShow(cfg, "test")
	switch {
	case forward && mirror:
		return io.MultiWriter(&sinkWriter{sink: sink}, os.Stderr)
	case forward:
		return &sinkWriter{sink: sink}
	case mirror:
		return os.Stderr
	}
	return io.Discard
}

func logOptions(levelName string) pslog.Options {
	opts := pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
	}
	switch strings.ToUpper(strings.TrimSpace(levelName)) {
	case "TRACE":
		opts.MinLevel = pslog.TraceLevel
	case "INFO":
		opts.MinLevel = pslog.InfoLevel
	case "WARN", "WARNING":
		opts.MinLevel = pslog.WarnLevel
	case "ERROR", "CRITICAL":
		opts.MinLevel = pslog.ErrorLevel
	default:
		opts.MinLevel = pslog.DebugLevel
	}
	return opts
}

// sinkWriter turns each written log line into a log message.
type sinkWriter struct {
	sink Sink
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		w.sink.Put(schema.LogMessage(line))
	}
	return len(p), nil
}

func failClass(err error) string {
	switch {
	case errors.Is(err, schema.ErrMalformedURI), errors.Is(err, schema.ErrEmptyURI):
		return "MalformedURI"
	case errors.Is(err, schema.ErrUnknownClass), errors.Is(err, schema.ErrUnknownMethod):
		return "LoadFailure"
	case errors.Is(err, schema.ErrUnsupportedKind):
		return "UnsupportedKind"
	}
	return "WorkerFault"
}
