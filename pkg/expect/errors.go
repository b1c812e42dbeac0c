package expect

import (
	"errors"
	"fmt"
)

// Assertion sentinels. Every AssertionError wraps exactly one of these.
var (
	// ErrUnexpected is reported when no queued expectation matches an operation.
	ErrUnexpected = errors.New("unexpected operation")

	// ErrContentMismatch is reported when pushed bytes differ from the declared content.
	ErrContentMismatch = errors.New("content mismatch")

	// ErrUnmet is reported at verification for an expectation that was never consumed.
	ErrUnmet = errors.New("unmet expectation")
)

// DeviceError is a protocol-level failure declared with FailWith.
// Its message is the declared one, verbatim.
type DeviceError struct {
	Serial  string
	Kind    Kind
	Key     string
	Message string
}

func (e *DeviceError) Error() string {
	return e.Message
}

// AssertionError is a harness-level test failure.
type AssertionError struct {
	Serial string
	Kind   Kind
	Key    string

	// Err is one of ErrUnexpected, ErrContentMismatch, ErrUnmet.
	Err error

	// Detail adds context, e.g. the differing content.
	Detail string
}

func (e *AssertionError) Error() string {
	where := describeKey(e.Kind, e.Key)
	switch {
	case errors.Is(e.Err, ErrUnexpected):
		return fmt.Sprintf("unexpected %s to device %s %s", e.Kind, e.Serial, where)
	case errors.Is(e.Err, ErrUnmet):
		return fmt.Sprintf("device %s: expected %s %s", e.Serial, e.Kind, where)
	case errors.Is(e.Err, ErrContentMismatch):
		msg := fmt.Sprintf("%s to device %s %s: content mismatch", e.Kind, e.Serial, where)
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg
	default:
		return fmt.Sprintf("%s to device %s %s: %v", e.Kind, e.Serial, where, e.Err)
	}
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err carries a declared device-side failure.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// IsAssertion reports whether err is a harness-level assertion failure.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}
