package transport

import (
	"errors"
	"fmt"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/wire"
)

// Transport errors.
var (
	// ErrConnectionClosed is returned by operations on a closed connection or link.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrDeviceNotFound is returned by the client for a StatusNotFound response.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrBadRequest is returned by the client for a StatusBadRequest response.
	ErrBadRequest = errors.New("bad request")
)

// StatusError is a non-OK response that is neither a device failure nor an assertion.
type StatusError struct {
	Status  wire.Status
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case wire.StatusNotFound:
		return ErrDeviceNotFound
	case wire.StatusBadRequest:
		return ErrBadRequest
	}
	return nil
}

// kindOf maps a device operation to its expectation kind.
func kindOf(op wire.Operation) expect.Kind {
	switch op {
	case wire.OpPush:
		return expect.KindPush
	case wire.OpPull:
		return expect.KindPull
	case wire.OpShell:
		return expect.KindShell
	case wire.OpList:
		return expect.KindList
	case wire.OpTcpip:
		return expect.KindTcpip
	}
	return 0
}

// keyOf returns the match key a request is dispatched under.
func keyOf(req *wire.Request) string {
	switch req.Operation {
	case wire.OpShell:
		return req.Command
	case wire.OpTcpip:
		return fmt.Sprint(req.Port)
	}
	return req.Path
}

// errorResponse fills resp from a dispatch error, keeping the device
// failure and assertion classes apart.
func errorResponse(resp *wire.Response, err error) {
	var de *expect.DeviceError
	var ae *expect.AssertionError

	switch {
	case errors.As(err, &de):
		resp.Status = wire.StatusDeviceFailure
		resp.Message = de.Message
	case errors.As(err, &ae):
		resp.Status = wire.StatusAssertion
		resp.Message = ae.Error()
		resp.Detail = ae.Detail
		resp.Assertion = wire.AssertionUnexpected
		if errors.Is(ae.Err, expect.ErrContentMismatch) {
			resp.Assertion = wire.AssertionMismatch
		}
	default:
		resp.Status = wire.StatusDeviceFailure
		resp.Message = err.Error()
	}
}

// responseError rebuilds the error a non-OK response stands for.
func responseError(req *wire.Request, resp *wire.Response) error {
	switch resp.Status {
	case wire.StatusOK:
		return nil
	case wire.StatusDeviceFailure:
		return &expect.DeviceError{
			Serial:  req.Serial,
			Kind:    kindOf(req.Operation),
			Key:     keyOf(req),
			Message: resp.Message,
		}
	case wire.StatusAssertion:
		sentinel := expect.ErrUnexpected
		if resp.Assertion == wire.AssertionMismatch {
			sentinel = expect.ErrContentMismatch
		}
		return &expect.AssertionError{
			Serial: req.Serial,
			Kind:   kindOf(req.Operation),
			Key:    keyOf(req),
			Err:    sentinel,
			Detail: resp.Detail,
		}
	default:
		return &StatusError{Status: resp.Status, Message: resp.Message}
	}
}
