package schema

import (
	"errors"
	"fmt"
)

// ErrDecode matches every *DecodeError with errors.Is.
var ErrDecode = errors.New("schema: decode failed")

// Reason classifies a decode failure for diagnostics. Dispatch treats all
// reasons the same way.
type Reason int

const (
	// ReasonMalformed: the payload is not valid JSON.
	ReasonMalformed Reason = iota + 1
	// ReasonShapeMismatch: a field is missing or has the wrong type.
	ReasonShapeMismatch
	// ReasonInvariant: the structure matched but the constructor refused the value.
	ReasonInvariant
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonShapeMismatch:
		return "shape_mismatch"
	case ReasonInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// DecodeError reports why a payload did not decode into a shape.
type DecodeError struct {
	Shape  string // shape name
	Path   string // JSON path of the offending value, "$" for the document
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s at %s: %v", e.Shape, e.Reason, e.Path, e.Err)
}

// Is reports true for ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func mismatch(shape, path, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Shape: shape, Path: path, Reason: ReasonShapeMismatch, Err: fmt.Errorf(format, args...)}
}
