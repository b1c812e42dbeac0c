package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/wire"
)

// ClientConfig configures a control client.
type ClientConfig struct {
	// MaxMessageSize is the maximum frame size (default: DefaultMaxMessageSize).
	MaxMessageSize uint32

	// ConnectTimeout is the dial timeout when ctx has no deadline (default: 10s).
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client is a control-channel client. Requests are issued one at a time.
// Non-OK responses come back as *expect.DeviceError, *expect.AssertionError
// or *StatusError, so callers can tell device failures from assertions.
type Client struct {
	conn   net.Conn
	framer *Framer

	mu        sync.Mutex
	messageID uint32
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to a control server.
func Dial(ctx context.Context, address string, config ClientConfig) (*Client, error) {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	framer := NewFramerWithMaxSize(conn, config.MaxMessageSize)
	framer.SetLogger(config.Logger, uuid.New().String(), log.LayerTransport)

	return &Client{
		conn:   conn,
		framer: framer,
		closed: make(chan struct{}),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Version returns the server protocol version.
func (c *Client) Version(ctx context.Context) (int, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpVersion})
	if err != nil {
		return 0, err
	}
	return int(resp.Version), nil
}

// Devices lists the registered devices.
func (c *Client) Devices(ctx context.Context) ([]device.Info, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpDevices})
	if err != nil {
		return nil, err
	}
	out := make([]device.Info, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		out = append(out, device.Info{Serial: d.Serial, State: d.State})
	}
	return out, nil
}

// Connect asks the server to bridge a networked device at address (host:port).
// It returns true when a new device was registered.
func (c *Client) Connect(ctx context.Context, address string) (bool, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpConnect, Serial: address})
	if err != nil {
		return false, err
	}
	return resp.Connected, nil
}

// Push sends content to path on the device.
func (c *Client) Push(ctx context.Context, serial, path string, mode os.FileMode, content []byte) error {
	_, err := c.roundTrip(ctx, &wire.Request{
		Operation: wire.OpPush,
		Serial:    serial,
		Path:      path,
		Mode:      uint32(mode),
		Data:      content,
	})
	return err
}

// Pull reads path from the device.
func (c *Client) Pull(ctx context.Context, serial, path string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpPull, Serial: serial, Path: path})
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []byte{}, nil
	}
	return resp.Data, nil
}

// Shell runs command on the device and returns its output.
func (c *Client) Shell(ctx context.Context, serial, command string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpShell, Serial: serial, Command: command})
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []byte{}, nil
	}
	return resp.Data, nil
}

// Tcpip switches the device to network mode on port.
func (c *Client) Tcpip(ctx context.Context, serial string, port int) error {
	if port <= 0 || port > 65535 {
		return wire.ErrInvalidPort
	}
	_, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpTcpip, Serial: serial, Port: uint32(port)})
	return err
}

// List enumerates the directory at path on the device.
func (c *Client) List(ctx context.Context, serial, path string) ([]expect.RemoteFile, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpList, Serial: serial, Path: path})
	if err != nil {
		return nil, err
	}
	out := make([]expect.RemoteFile, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		out = append(out, expect.RemoteFile{Path: e.Name, Size: e.Size, ModTime: e.ModTime, Dir: e.Dir})
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return nil, ErrConnectionClosed
	default:
	}

	c.messageID++
	req.MessageID = c.messageID

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.framer.WriteFrame(data); err != nil {
		return nil, c.ctxErr(ctx, err)
	}
	frame, err := c.framer.ReadFrame()
	if err != nil {
		return nil, c.ctxErr(ctx, err)
	}

	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		return nil, err
	}
	if resp.MessageID != req.MessageID {
		return nil, fmt.Errorf("response id %d does not match request id %d", resp.MessageID, req.MessageID)
	}
	if err := responseError(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ctxErr closes the client after a failed exchange, since the stream can
// no longer be trusted to be at a frame boundary.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	c.Close()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
