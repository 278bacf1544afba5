package schema

import "strconv"

// Keys of the scheduler-provided runnable configuration consumed by the
// worker. The configuration is read-only; absent keys fall back to the
// defaults each accessor takes.
const (
	// KeyTestParameters maps parameter names to values applied when the
	// runnable carries no variant.
	KeyTestParameters = "run.test_parameters"
	// KeyCacheDirs lists cache directories exposed to test units.
	KeyCacheDirs = "datadir.paths.cache_dirs"
	// KeyShow lists the job's enabled output sinks; "test" mirrors forwarded
	// log records to the worker's stderr.
	KeyShow = "core.show"
	// KeyLogLevel sets the minimum level of log records forwarded through the
	// message channel.
	KeyLogLevel = "job.output.loglevel"
	// KeyStoreLoggingStream enables forwarding log records through the
	// message channel.
	KeyStoreLoggingStream = "job.run.store_logging_stream"
	// KeyCoverage persists coverage data for the worker process's lifetime.
	KeyCoverage = "run.coverage"
)

// ConfigString returns the string under key, or def when absent or not a
// string.
func ConfigString(cfg map[string]any, key, def string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return def
}

// ConfigBool returns the bool under key, accepting strconv-parsable strings,
// or def when absent or unparsable.
func ConfigBool(cfg map[string]any, key string, def bool) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// ConfigStrings returns the string list under key. Decoded JSON carries lists
// as []any; non-string elements are skipped.
func ConfigStrings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ConfigStringMap returns the string-keyed mapping under key with values
// rendered to strings. Non-scalar values are skipped.
func ConfigStringMap(cfg map[string]any, key string) map[string]string {
	raw, ok := cfg[key].(map[string]any)
	if !ok {
		if m, ok := cfg[key].(map[string]string); ok {
			return m
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(val)
		}
	}
	return out
}

// ConfigHasShow reports whether the core.show list enables the given sink.
func ConfigHasShow(cfg map[string]any, sink string) bool {
	for _, s := range ConfigStrings(cfg, KeyShow) {
		if s == sink || s == "all" {
			return true
		}
	}
	return false
}
