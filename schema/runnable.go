package schema

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// KindInstrumented is the runnable kind this runner executes.
const KindInstrumented = "avocado-instrumented"

// Runnable is the immutable description of one unit of test execution, as
// handed over by a scheduler. The zero value is not runnable; decode one with
// DecodeRunnable or populate at least Kind and URI.
type Runnable struct {
	Kind      string         `json:"kind"`
	URI       string         `json:"uri"`
	Variant   *Variant       `json:"variant,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	OutputDir string         `json:"output_dir,omitempty"`
}

// DecodeRunnable parses and validates a runnable document.
func DecodeRunnable(data []byte) (Runnable, error) {
	var r Runnable
	if err := json.Unmarshal(data, &r); err != nil {
		return Runnable{}, fmt.Errorf("decode runnable: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Runnable{}, err
	}
	return r, nil
}

// Validate checks the fields every consumer of a runnable relies on.
func (r Runnable) Validate() error {
	if r.Kind != KindInstrumented {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, r.Kind)
	}
	if strings.TrimSpace(r.URI) == "" {
		return ErrEmptyURI
	}
	return nil
}

// SplitURI breaks a runnable uri into its module path, class name and method
// name. The expected form is modulePath:ClassName.methodName; both splits
// take the first separator, so anything past the first ":" belongs to the
// class-method pair and anything past its first "." to the method name.
func SplitURI(uri string) (modulePath, className, methodName string, err error) {
	modulePath, rest, ok := strings.Cut(uri, ":")
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q: missing \":\" separator", ErrMalformedURI, uri)
	}
	className, methodName, ok = strings.Cut(rest, ".")
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q: missing \".\" separator", ErrMalformedURI, uri)
	}
	return modulePath, className, methodName, nil
}

// Variant is one parameterization instance attached to a runnable: parameter
// nodes keyed by tree path plus the path list parameter lookup resolves
// against.
type Variant struct {
	Variant []VariantEntry `json:"variant"`
	Paths   []string       `json:"paths"`
}

// ID derives a stable identifier from the variant's canonical JSON form.
// A nil variant has an empty ID.
func (v *Variant) ID() string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	hasher := fnv.New64a()
	_, _ = hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum64())
}

// VariantEntry is one (path, environment) parameter node. On the wire it is a
// two-element array, not an object.
type VariantEntry struct {
	Path        string
	Environment map[string]string
}

// MarshalJSON encodes the entry as [path, environment].
func (e VariantEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Path, e.Environment})
}

// UnmarshalJSON decodes a [path, environment] pair.
func (e *VariantEntry) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("variant entry: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("variant entry: want [path, environment], got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.Path); err != nil {
		return fmt.Errorf("variant entry path: %w", err)
	}
	if err := json.Unmarshal(parts[1], &e.Environment); err != nil {
		return fmt.Errorf("variant entry environment: %w", err)
	}
	return nil
}
