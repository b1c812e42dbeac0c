package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the client or link connection (UUID).
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Serial is the simulated device the event relates to.
	Serial string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Operation   *OperationEvent   `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the server captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerDevice is the simulated device (dispatch and matching).
	LayerDevice Layer = 1
	// LayerLink is the downstream bridge link.
	LayerLink Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerDevice:
		return "DEVICE"
	case LayerLink:
		return "LINK"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a framed message.
	CategoryMessage Category = 0
	// CategoryOperation indicates a dispatched device operation.
	CategoryOperation Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryOperation:
		return "OPERATION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// OperationEvent captures one operation dispatched to a simulated device.
type OperationEvent struct {
	// Operation is the operation kind ("push", "pull", "shell", "list", "tcpip").
	Operation string `cbor:"1,keyasint"`

	// Key is the match key: remote path, command line or port.
	Key string `cbor:"2,keyasint"`

	// Outcome is how the dispatch was resolved.
	Outcome Outcome `cbor:"3,keyasint"`

	// Size is the payload size sent or returned, when applicable.
	Size int `cbor:"4,keyasint,omitempty"`

	// Detail carries the failure message for non-matched outcomes.
	Detail string `cbor:"5,keyasint,omitempty"`
}

// Outcome describes how a dispatched operation was resolved.
type Outcome uint8

const (
	// OutcomeMatched means an expectation was consumed and satisfied.
	OutcomeMatched Outcome = 0
	// OutcomeDeviceFailure means the matched expectation declared a failure.
	OutcomeDeviceFailure Outcome = 1
	// OutcomeUnexpected means no expectation matched.
	OutcomeUnexpected Outcome = 2
	// OutcomeMismatch means the pushed content differed from the declared content.
	OutcomeMismatch Outcome = 3
	// OutcomeForwarded means the operation was forwarded over a bridge link.
	OutcomeForwarded Outcome = 4
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "MATCHED"
	case OutcomeDeviceFailure:
		return "DEVICE_FAILURE"
	case OutcomeUnexpected:
		return "UNEXPECTED"
	case OutcomeMismatch:
		return "MISMATCH"
	case OutcomeForwarded:
		return "FORWARDED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures link lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being done.
	Context string `cbor:"3,keyasint,omitempty"`
}
