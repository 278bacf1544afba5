// Package unit defines the test-unit contract executed inside worker
// processes: the Unit interface, the construction Descriptor, a process-start
// factory registry keyed by class name, and Case, a declarative harness for
// writing test classes.
package unit

import (
	"context"
	"strconv"

	"pkt.systems/avorun/schema"
	"pkt.systems/avorun/varianter"
)

// Unit is one runnable test instance.
type Unit interface {
	// Run executes the test. The outcome is recorded in the unit's state,
	// never returned: a test cannot fail its harness, only itself.
	Run(ctx context.Context)
	// State reports the unit's current externally visible state.
	State() State
}

// State is the externally visible state of a unit. Status stays empty until
// Run finishes; Timeout (seconds, zero meaning unbounded) is valid from
// construction so supervisors can learn it before the run starts.
type State struct {
	Name       string
	Class      string
	Status     schema.Status
	FailReason string
	FailClass  string
	Traceback  string
	Whiteboard string
	Timeout    float64
}

// Descriptor carries everything needed to construct a unit. ModulePath is
// informational; factories are resolved by class name alone.
type Descriptor struct {
	Name       TestID
	Class      string
	Method     string
	ModulePath string
	Config     map[string]any
	Params     *varianter.Parameters
	Tags       []string
	ResultsDir string
}

// TestID identifies a single test instance within a job.
type TestID struct {
	Index     int
	URI       string
	VariantID string
}

// NewTestID builds the canonical id for a runnable's single test: index 1,
// the runnable uri, plus a variant-derived suffix when a variant is present.
func NewTestID(uri string, variant *schema.Variant) TestID {
	return TestID{Index: 1, URI: uri, VariantID: variant.ID()}
}

// String renders "<index>-<uri>", extended with ";<variant>" when varied.
func (id TestID) String() string {
	s := strconv.Itoa(id.Index) + "-" + id.URI
	if id.VariantID != "" {
		s += ";" + id.VariantID
	}
	return s
}
