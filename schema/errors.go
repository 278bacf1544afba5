package schema

import "errors"

var (
	// ErrUnsupportedKind indicates a runnable kind this runner cannot execute.
	ErrUnsupportedKind = errors.New("unsupported runnable kind")
	// ErrEmptyURI indicates a runnable without a test reference.
	ErrEmptyURI = errors.New("empty runnable uri")
	// ErrMalformedURI indicates a uri missing the module or the method separator.
	ErrMalformedURI = errors.New("malformed uri")
	// ErrUnknownClass indicates no test class is registered under the name.
	ErrUnknownClass = errors.New("unknown test class")
	// ErrUnknownMethod indicates the test class does not define the method.
	ErrUnknownMethod = errors.New("unknown test method")
)
