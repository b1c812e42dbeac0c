package device

import (
	"context"
	"os"
	"time"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
)

// Device states as reported in device listings.
const (
	StateDevice       = "device"
	StateOffline      = "offline"
	StateUnauthorized = "unauthorized"
	StateRecovery     = "recovery"
	StateBootloader   = "bootloader"
	StateSideload     = "sideload"
	StateHost         = "host"
)

// Info is one row of a device listing.
type Info struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
}

// Responder is the dispatch contract the transport calls into, one
// operation per call.
type Responder interface {
	// Serial returns the device identity.
	Serial() string

	// State returns the connection state reported in listings.
	State() string

	// Push receives a file sent to the device.
	Push(ctx context.Context, path string, mode os.FileMode, content []byte) error

	// Pull returns the content of a file read from the device.
	Pull(ctx context.Context, path string) ([]byte, error)

	// Shell runs a command and returns its output.
	Shell(ctx context.Context, command string) ([]byte, error)

	// Tcpip switches the device to network mode on port.
	Tcpip(ctx context.Context, port int) error

	// List returns the entries of a remote directory.
	List(ctx context.Context, path string) ([]expect.RemoteFile, error)

	// Unmet returns every expectation not yet consumed plus every assertion
	// failure recorded during dispatch.
	Unmet() []*expect.AssertionError
}

// Declarer is the test-author side of a device.
type Declarer interface {
	ExpectPush(path string) *expect.FileExpectation
	ExpectPull(path string) *expect.FileExpectation
	ExpectShell(command string) *expect.ShellExpectation
	ExpectList(path string) *expect.ListExpectation
	ExpectTcpip(port int)
}

// Device is a simulated device: both dispatch and declaration.
type Device interface {
	Responder
	Declarer
}

// Config holds settings shared by both device variants.
type Config struct {
	// State is the reported connection state (default: "device").
	State string

	// Logger receives an OperationEvent per dispatch (optional).
	Logger log.Logger

	// ReadTimeout bounds a bridged shell command, including every read
	// until the prompt appears (0 = no timeout).
	ReadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.State == "" {
		c.State = StateDevice
	}
	c.Logger = log.OrNoop(c.Logger)
	return c
}

var (
	_ Device = (*Scripted)(nil)
	_ Device = (*Bridge)(nil)
)
