package wire

// Status is the result code of a control response.
type Status uint8

const (
	// StatusOK indicates the operation succeeded.
	StatusOK Status = 0

	// StatusDeviceFailure indicates a device-side failure. Message is the
	// failure text as the device reported it.
	StatusDeviceFailure Status = 1

	// StatusAssertion indicates the harness rejected the operation: nothing
	// expected it, or pushed content did not match.
	StatusAssertion Status = 2

	// StatusNotFound indicates the request named an unknown device.
	StatusNotFound Status = 3

	// StatusBadRequest indicates a malformed or invalid request.
	StatusBadRequest Status = 4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDeviceFailure:
		return "DEVICE_FAILURE"
	case StatusAssertion:
		return "ASSERTION"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}
