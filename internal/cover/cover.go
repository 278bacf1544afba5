// Package cover persists this process's coverage counters for one worker
// run. It only has an effect in binaries built with -cover; elsewhere every
// call degrades to a logged no-op.
package cover

import (
	"os"
	"path/filepath"
	"runtime/coverage"

	"pkt.systems/pslog"
)

// Start clears the counters so the persisted data covers only this run.
func Start(log pslog.Logger) {
	if err := coverage.ClearCounters(); err != nil {
		log.Debug("coverage counters unavailable", "err", err)
	}
}

// Stop writes meta and counter data into dir/coverage.
func Stop(log pslog.Logger, dir string) {
	out := filepath.Join(dir, "coverage")
	if err := os.MkdirAll(out, 0o755); err != nil {
		log.Warn("coverage output dir failed", "dir", out, "err", err)
		return
	}
	if err := coverage.WriteMetaDir(out); err != nil {
		log.Debug("coverage meta not written", "err", err)
		return
	}
	if err := coverage.WriteCountersDir(out); err != nil {
		log.Warn("coverage counters not written", "err", err)
		return
	}
	log.Debug("coverage persisted", "dir", out)
}
