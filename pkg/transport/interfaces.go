package transport

import (
	"context"
	"net"

	"github.com/adbfake/adbfake-go/pkg/device"
)

// Directory is what the server routes requests through.
// Implemented by registry.Registry.
type Directory interface {
	// Version returns the server protocol version.
	Version() int

	// Devices lists every device in registration order.
	Devices() []device.Info

	// IsDeviceConnected reports whether serial is registered.
	IsDeviceConnected(serial string) bool

	// OnDeviceConnect is called for a connect request. It returns true when
	// a new device was registered.
	OnDeviceConnect(ctx context.Context, serial string) (bool, error)

	// Lookup returns the responder for serial.
	Lookup(serial string) (device.Responder, bool)
}

// ControlServer is the control-channel listener.
// Implemented by Server.
type ControlServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop closes the listener and every connection.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ ControlServer   = (*Server)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
