package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pkt.systems/avorun/unit"
)

// Built-in demo classes. They give schedulers something to run against a
// fresh binary and cover every outcome the runner can report.
func init() {
	unit.Register("PassTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				return nil
			},
		},
	}))

	unit.Register("FailTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				return unit.Fail("this test is supposed to fail")
			},
		},
	}))

	unit.Register("ErrorTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				return fmt.Errorf("this test reports an infrastructure error")
			},
		},
	}))

	unit.Register("PanicTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				panic("this test panics on purpose")
			},
		},
	}))

	// SleepTest advertises a timeout, so a long sleep_length exercises the
	// supervisor's forcible termination.
	unit.Register("SleepTest", unit.NewClass(unit.ClassSpec{
		Timeout: 3,
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				raw, err := c.Param("sleep_length", "*", "1.0")
				if err != nil {
					return err
				}
				secs, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("sleep_length %q: %w", raw, err)
				}
				c.Log(ctx).Debug("sleeping", "seconds", secs)
				select {
				case <-time.After(time.Duration(secs * float64(time.Second))):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	}))

	unit.Register("ParamTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				value, err := c.Param("key", "*", "")
				if err != nil {
					return err
				}
				if value == "" {
					return unit.Fail("parameter \"key\" not provided")
				}
				c.Whiteboard(value)
				return nil
			},
		},
	}))

	unit.Register("WhiteboardTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				c.Whiteboard("text sent to the whiteboard")
				return nil
			},
		},
	}))

	unit.Register("LogTest", unit.NewClass(unit.ClassSpec{
		Methods: map[string]unit.Method{
			"test": func(ctx context.Context, c *unit.Case) error {
				log := c.Log(ctx)
				log.Info("log line during the test", "results_dir", c.ResultsDir())
				log.Warn("another one, at warning level")
				return nil
			},
		},
	}))
}
