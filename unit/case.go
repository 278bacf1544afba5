package unit

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"pkt.systems/avorun/schema"
	"pkt.systems/pslog"
)

// ErrFail marks a test failure, as opposed to an infrastructure error.
// Methods report failures with Fail or Failf; any other non-nil error (or a
// panic) is classified as an error, not a failure.
var ErrFail = errors.New("test failed")

// Fail returns a test failure with the given reason.
func Fail(reason string) error {
	return &failError{reason: reason}
}

// Failf returns a formatted test failure.
func Failf(format string, args ...any) error {
	return &failError{reason: fmt.Sprintf(format, args...)}
}

type failError struct{ reason string }

func (e *failError) Error() string        { return e.reason }
func (e *failError) Is(target error) bool { return target == ErrFail }

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// Method is one test method body running inside a Case. Returning nil passes
// the test. The context is informational: enforcement of the advertised
// timeout is the supervisor's job, not the method's.
type Method func(ctx context.Context, c *Case) error

// ClassSpec declares a test class for NewClass.
type ClassSpec struct {
	// Timeout bounds the test in seconds, advertised to the supervisor via
	// the unit's state. Zero means unbounded. The "timeout" test parameter
	// overrides it per instance.
	Timeout float64
	Methods map[string]Method
}

// NewClass builds a registry Factory from a declarative class spec.
func NewClass(spec ClassSpec) Factory {
	return func(d Descriptor) (Unit, error) {
		m, ok := spec.Methods[d.Method]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownMethod, d.Class, d.Method)
		}
		c := &Case{desc: d, method: m}
		c.state = State{
			Name:    d.Name.String(),
			Class:   d.Class,
			Timeout: spec.Timeout,
		}
		raw, err := c.Param("timeout", "*", "")
		if err != nil {
			return nil, fmt.Errorf("resolve timeout parameter: %w", err)
		}
		if raw != "" {
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("timeout parameter %q: %w", raw, err)
			}
			c.state.Timeout = secs
		}
		return c, nil
	}
}

// Case is the harness declarative test methods run inside. It records the
// outcome and exposes parameter, configuration and artifact helpers.
type Case struct {
	desc   Descriptor
	method Method

	mu    sync.Mutex
	state State
}

// Run executes the test method and records the outcome: nil passes, Fail
// errors fail, anything else (panics included) errors with a traceback.
func (c *Case) Run(ctx context.Context) {
	err := c.invoke(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.state.Status = schema.StatusPass
	case errors.Is(err, ErrFail):
		c.state.Status = schema.StatusFail
		c.state.FailReason = err.Error()
		c.state.FailClass = "TestFail"
	default:
		c.state.Status = schema.StatusError
		c.state.FailReason = err.Error()
		c.state.FailClass = "Error"
		var pe *panicError
		if errors.As(err, &pe) {
			c.state.FailClass = "Panic"
			c.state.Traceback = string(pe.stack)
		}
	}
}

func (c *Case) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return c.method(ctx, c)
}

// State returns a copy of the unit's current state.
func (c *Case) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Name returns the full test id.
func (c *Case) Name() string { return c.desc.Name.String() }

// Param resolves a test parameter: through the variant when the runnable
// carried one, else through the run.test_parameters configuration mapping.
func (c *Case) Param(key, path, def string) (string, error) {
	if c.desc.Params != nil {
		return c.desc.Params.Get(key, path, def)
	}
	if v, ok := schema.ConfigStringMap(c.desc.Config, schema.KeyTestParameters)[key]; ok {
		return v, nil
	}
	return def, nil
}

// Config returns the raw scheduler configuration value under key.
func (c *Case) Config(key string) (any, bool) {
	v, ok := c.desc.Config[key]
	return v, ok
}

// Tags returns the runnable's tags.
func (c *Case) Tags() []string { return c.desc.Tags }

// ResultsDir returns the directory reserved for this test's artifacts.
func (c *Case) ResultsDir() string { return c.desc.ResultsDir }

// CacheDirs returns the configured cache directories.
func (c *Case) CacheDirs() []string {
	return schema.ConfigStrings(c.desc.Config, schema.KeyCacheDirs)
}

// Log returns the logger bound to the run's context.
func (c *Case) Log(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// Whiteboard replaces the test's whiteboard content, delivered to the
// supervisor after the run when non-empty.
func (c *Case) Whiteboard(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Whiteboard = text
}
