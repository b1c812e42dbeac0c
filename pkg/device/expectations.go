package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
)

// maxDetailBytes caps how much of a mismatched push is quoted in the failure.
const maxDetailBytes = 64

// Expectations owns the four expectation queues of one device and matches
// incoming operations against them. Declarations are expected to happen
// before the system under test starts dispatching; the mutex still makes
// concurrent dispatch from several transport goroutines safe.
type Expectations struct {
	serial string
	state  string
	logger log.Logger

	mu       sync.Mutex
	files    expect.Queue[string, *expect.FileExpectation]
	shells   expect.Queue[string, *expect.ShellExpectation]
	lists    expect.Queue[string, *expect.ListExpectation]
	tcpips   expect.Queue[int, *expect.TcpipExpectation]
	failures []*expect.AssertionError
}

func newExpectations(serial string, cfg Config) *Expectations {
	return &Expectations{
		serial: serial,
		state:  cfg.State,
		logger: cfg.Logger,
	}
}

// Serial returns the device identity.
func (x *Expectations) Serial() string { return x.serial }

// State returns the reported connection state.
func (x *Expectations) State() string { return x.state }

// ExpectPush declares a push to path.
func (x *Expectations) ExpectPush(path string) *expect.FileExpectation {
	e := expect.NewFileExpectation(expect.KindPush, path)
	x.mu.Lock()
	x.files.Append(e)
	x.mu.Unlock()
	return e
}

// ExpectPull declares a pull of path.
func (x *Expectations) ExpectPull(path string) *expect.FileExpectation {
	e := expect.NewFileExpectation(expect.KindPull, path)
	x.mu.Lock()
	x.files.Append(e)
	x.mu.Unlock()
	return e
}

// ExpectShell declares an execution of command.
func (x *Expectations) ExpectShell(command string) *expect.ShellExpectation {
	e := expect.NewShellExpectation(command)
	x.mu.Lock()
	x.shells.Append(e)
	x.mu.Unlock()
	return e
}

// ExpectList declares a listing of path.
func (x *Expectations) ExpectList(path string) *expect.ListExpectation {
	e := expect.NewListExpectation(path)
	x.mu.Lock()
	x.lists.Append(e)
	x.mu.Unlock()
	return e
}

// ExpectTcpip declares a switch to network mode on port.
func (x *Expectations) ExpectTcpip(port int) {
	x.mu.Lock()
	x.tcpips.Append(expect.NewTcpipExpectation(port))
	x.mu.Unlock()
}

// Push matches a push against the transfer queue and checks its content
// byte for byte. An expectation without declared content only accepts an
// empty push.
func (x *Expectations) Push(ctx context.Context, path string, mode os.FileMode, content []byte) error {
	x.mu.Lock()
	e, ok := x.files.Consume(path)
	x.mu.Unlock()
	if !ok {
		return x.unexpected(expect.KindPush, path)
	}
	if msg, failed := e.Failure(); failed {
		return x.deviceFailure(expect.KindPush, path, msg)
	}

	// Undeclared content is empty content.
	if want, _ := e.Content(); !bytes.Equal(want, content) {
		detail := fmt.Sprintf("want %q, got %q", clip(want), clip(content))
		if e.Kind() != expect.KindPush {
			detail = fmt.Sprintf("declared as %s: %s", e.Kind(), detail)
		}
		err := &expect.AssertionError{
			Serial: x.serial,
			Kind:   expect.KindPush,
			Key:    path,
			Err:    expect.ErrContentMismatch,
			Detail: detail,
		}
		x.record(err)
		x.logOp(expect.KindPush, path, log.OutcomeMismatch, len(content), err.Error())
		return err
	}

	x.logOp(expect.KindPush, path, log.OutcomeMatched, len(content), "")
	return nil
}

// Pull matches a pull against the transfer queue and returns the declared content.
func (x *Expectations) Pull(ctx context.Context, path string) ([]byte, error) {
	x.mu.Lock()
	e, ok := x.files.Consume(path)
	x.mu.Unlock()
	if !ok {
		return nil, x.unexpected(expect.KindPull, path)
	}
	if msg, failed := e.Failure(); failed {
		return nil, x.deviceFailure(expect.KindPull, path, msg)
	}

	content, _ := e.Content()
	if content == nil {
		content = []byte{}
	}
	x.logOp(expect.KindPull, path, log.OutcomeMatched, len(content), "")
	return content, nil
}

// Shell matches command against the shell queue and returns the declared output.
func (x *Expectations) Shell(ctx context.Context, command string) ([]byte, error) {
	x.mu.Lock()
	e, ok := x.shells.Consume(command)
	x.mu.Unlock()
	if !ok {
		return nil, x.unexpected(expect.KindShell, command)
	}
	if msg, failed := e.Failure(); failed {
		return nil, x.deviceFailure(expect.KindShell, command, msg)
	}

	out := e.Output()
	x.logOp(expect.KindShell, command, log.OutcomeMatched, len(out), "")
	return out, nil
}

// Tcpip matches port against the tcpip queue.
func (x *Expectations) Tcpip(ctx context.Context, port int) error {
	key := strconv.Itoa(port)

	x.mu.Lock()
	_, ok := x.tcpips.Consume(port)
	x.mu.Unlock()
	if !ok {
		return x.unexpected(expect.KindTcpip, key)
	}

	x.logOp(expect.KindTcpip, key, log.OutcomeMatched, 0, "")
	return nil
}

// List matches path against the list queue and returns the declared entries.
func (x *Expectations) List(ctx context.Context, path string) ([]expect.RemoteFile, error) {
	x.mu.Lock()
	e, ok := x.lists.Consume(path)
	x.mu.Unlock()
	if !ok {
		return nil, x.unexpected(expect.KindList, path)
	}
	if msg, failed := e.Failure(); failed {
		return nil, x.deviceFailure(expect.KindList, path, msg)
	}

	entries := e.Entries()
	x.logOp(expect.KindList, path, log.OutcomeMatched, len(entries), "")
	return entries, nil
}

// Unmet returns recorded content mismatches followed by every unconsumed
// expectation, grouped by kind in declaration order. It does not clear anything.
// Unexpected operations are not recorded here: they are returned to the caller,
// so a test may provoke one on purpose.
func (x *Expectations) Unmet() []*expect.AssertionError {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]*expect.AssertionError, 0, len(x.failures)+x.files.Len()+x.shells.Len()+x.lists.Len()+x.tcpips.Len())
	out = append(out, x.failures...)
	for _, e := range x.files.Remaining() {
		out = append(out, x.unmet(e.Kind(), e.Path()))
	}
	for _, e := range x.shells.Remaining() {
		out = append(out, x.unmet(expect.KindShell, e.Command()))
	}
	for _, e := range x.lists.Remaining() {
		out = append(out, x.unmet(expect.KindList, e.Path()))
	}
	for _, e := range x.tcpips.Remaining() {
		out = append(out, x.unmet(expect.KindTcpip, strconv.Itoa(e.Port())))
	}
	return out
}

// Pending returns the number of unconsumed expectations across all kinds.
func (x *Expectations) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.files.Len() + x.shells.Len() + x.lists.Len() + x.tcpips.Len()
}

func (x *Expectations) unmet(kind expect.Kind, key string) *expect.AssertionError {
	return &expect.AssertionError{Serial: x.serial, Kind: kind, Key: key, Err: expect.ErrUnmet}
}

func (x *Expectations) unexpected(kind expect.Kind, key string) error {
	err := &expect.AssertionError{Serial: x.serial, Kind: kind, Key: key, Err: expect.ErrUnexpected}
	x.logOp(kind, key, log.OutcomeUnexpected, 0, err.Error())
	return err
}

func (x *Expectations) deviceFailure(kind expect.Kind, key, message string) error {
	x.logOp(kind, key, log.OutcomeDeviceFailure, 0, message)
	return &expect.DeviceError{Serial: x.serial, Kind: kind, Key: key, Message: message}
}

func (x *Expectations) record(err *expect.AssertionError) {
	x.mu.Lock()
	x.failures = append(x.failures, err)
	x.mu.Unlock()
}

func (x *Expectations) logOp(kind expect.Kind, key string, outcome log.Outcome, size int, detail string) {
	x.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerDevice,
		Category:  log.CategoryOperation,
		Serial:    x.serial,
		Operation: &log.OperationEvent{
			Operation: kind.String(),
			Key:       key,
			Outcome:   outcome,
			Size:      size,
			Detail:    detail,
		},
	})
}

func clip(b []byte) []byte {
	if len(b) > maxDetailBytes {
		return b[:maxDetailBytes]
	}
	return b
}
