package wire

import (
	"errors"
	"fmt"
)

// MaxPayloadSize is the largest file content a message may carry. The
// transport framer derives its frame limit from it.
const MaxPayloadSize = 16 * 1024 * 1024

// Request validation errors.
var (
	ErrInvalidMessageID = errors.New("messageId must be non-zero")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrMissingSerial    = errors.New("serial is required")
	ErrMissingPath      = errors.New("path is required")
	ErrMissingCommand   = errors.New("command is required")
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
)

// Request is a control-channel request.
type Request struct {
	// MessageID correlates the request with its response (non-zero).
	MessageID uint32 `cbor:"1,keyasint"`

	// Operation to perform.
	Operation Operation `cbor:"2,keyasint"`

	// Serial names the target device (or host:port for OpConnect).
	Serial string `cbor:"3,keyasint,omitempty"`

	// Path is the remote path for push, pull and list.
	Path string `cbor:"4,keyasint,omitempty"`

	// Mode is the file mode of a pushed file.
	Mode uint32 `cbor:"5,keyasint,omitempty"`

	// Command is the shell command line.
	Command string `cbor:"6,keyasint,omitempty"`

	// Port is the tcpip port.
	Port uint32 `cbor:"7,keyasint,omitempty"`

	// Data is the pushed file content.
	Data []byte `cbor:"8,keyasint,omitempty"`
}

// Validate checks that the request carries the operands its operation needs.
func (r *Request) Validate() error {
	if r.MessageID == 0 {
		return ErrInvalidMessageID
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidOperation, r.Operation)
	}

	switch r.Operation {
	case OpConnect:
		if r.Serial == "" {
			return ErrMissingSerial
		}
	case OpPush, OpPull, OpList:
		if r.Serial == "" {
			return ErrMissingSerial
		}
		if r.Path == "" {
			return ErrMissingPath
		}
	case OpShell:
		if r.Serial == "" {
			return ErrMissingSerial
		}
		if r.Command == "" {
			return ErrMissingCommand
		}
	case OpTcpip:
		if r.Serial == "" {
			return ErrMissingSerial
		}
		if r.Port == 0 || r.Port > 65535 {
			return ErrInvalidPort
		}
	}
	return nil
}

// Response is a control-channel response.
type Response struct {
	// MessageID matches the request.
	MessageID uint32 `cbor:"1,keyasint"`

	// Status is the result code.
	Status Status `cbor:"2,keyasint"`

	// Message is the failure text for non-OK statuses.
	Message string `cbor:"3,keyasint,omitempty"`

	// Data is pulled file content or shell output.
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Entries is a directory listing.
	Entries []Entry `cbor:"5,keyasint,omitempty"`

	// Devices is the device listing.
	Devices []DeviceEntry `cbor:"6,keyasint,omitempty"`

	// Version is the server protocol version.
	Version uint32 `cbor:"7,keyasint,omitempty"`

	// Connected reports whether OpConnect registered a new device.
	Connected bool `cbor:"8,keyasint,omitempty"`

	// Assertion classifies a StatusAssertion response.
	Assertion Assertion `cbor:"9,keyasint,omitempty"`

	// Detail is the assertion detail (for content mismatches).
	Detail string `cbor:"10,keyasint,omitempty"`
}

// Entry is one directory listing entry.
type Entry struct {
	Name    string `cbor:"1,keyasint"`
	Size    int64  `cbor:"2,keyasint"`
	ModTime int64  `cbor:"3,keyasint,omitempty"`
	Dir     bool   `cbor:"4,keyasint,omitempty"`
}

// DeviceEntry is one device listing entry.
type DeviceEntry struct {
	Serial string `cbor:"1,keyasint"`
	State  string `cbor:"2,keyasint"`
}

// Assertion classifies a StatusAssertion response.
type Assertion uint8

const (
	// AssertionNone is used for every other status.
	AssertionNone Assertion = 0

	// AssertionUnexpected means no expectation matched the operation.
	AssertionUnexpected Assertion = 1

	// AssertionMismatch means pushed content differed from the declared content.
	AssertionMismatch Assertion = 2
)

// String returns the assertion name.
func (a Assertion) String() string {
	switch a {
	case AssertionNone:
		return "none"
	case AssertionUnexpected:
		return "unexpected"
	case AssertionMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}
