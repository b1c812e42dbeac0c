package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/wire"
)

// DefaultAddress is the default control-channel listen address.
const DefaultAddress = "127.0.0.1:15037"

// ServerConfig configures a control server.
type ServerConfig struct {
	// Address to listen on (default: DefaultAddress).
	Address string

	// Directory routes requests to devices. Required.
	Directory Directory

	// MaxMessageSize is the maximum frame size (default: DefaultMaxMessageSize).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is accepted.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnError is called when an error occurs outside of request handling.
	OnError func(conn *ServerConn, err error)
}

// Server accepts control connections and dispatches their requests to
// the devices of a Directory.
type Server struct {
	config   ServerConfig
	dir      Directory
	logger   log.Logger
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new control server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Directory == nil {
		return nil, fmt.Errorf("Directory is required")
	}
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Server{
		config: config,
		dir:    config.Directory,
		logger: log.OrNoop(config.Logger),
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts listening and accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections. In-flight dispatches
// see their context cancelled.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	framer.SetLogger(s.config.Logger, connID, log.LayerTransport)

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	s.logState(sconn, "", "CONNECTED")
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.serve(s.ctx)

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(c *ServerConn, oldState, newState string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
		},
	})
}

// dispatch handles one request. It never returns nil.
func (s *Server) dispatch(ctx context.Context, req *wire.Request) *wire.Response {
	resp := &wire.Response{MessageID: req.MessageID, Status: wire.StatusOK}

	switch req.Operation {
	case wire.OpVersion:
		resp.Version = uint32(s.dir.Version())
		return resp

	case wire.OpDevices:
		for _, d := range s.dir.Devices() {
			resp.Devices = append(resp.Devices, wire.DeviceEntry{Serial: d.Serial, State: d.State})
		}
		return resp

	case wire.OpConnect:
		added, err := s.dir.OnDeviceConnect(ctx, req.Serial)
		if err != nil {
			resp.Status = wire.StatusDeviceFailure
			resp.Message = err.Error()
			return resp
		}
		resp.Connected = added
		return resp
	}

	r, ok := s.dir.Lookup(req.Serial)
	if !ok {
		resp.Status = wire.StatusNotFound
		resp.Message = fmt.Sprintf("device '%s' not found", req.Serial)
		return resp
	}

	var err error
	switch req.Operation {
	case wire.OpPush:
		err = r.Push(ctx, req.Path, os.FileMode(req.Mode), req.Data)
	case wire.OpPull:
		resp.Data, err = r.Pull(ctx, req.Path)
	case wire.OpShell:
		resp.Data, err = r.Shell(ctx, req.Command)
	case wire.OpTcpip:
		err = r.Tcpip(ctx, int(req.Port))
	case wire.OpList:
		files, lerr := r.List(ctx, req.Path)
		err = lerr
		for _, f := range files {
			resp.Entries = append(resp.Entries, wire.Entry{
				Name:    f.Path,
				Size:    f.Size,
				ModTime: f.ModTime,
				Dir:     f.Dir,
			})
		}
	}
	if err != nil {
		resp.Data = nil
		resp.Entries = nil
		errorResponse(resp, err)
	}
	return resp
}

// ServerConn is one accepted control connection.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// serve reads requests until the connection closes. Requests on one
// connection are handled in order.
func (c *ServerConn) serve(ctx context.Context) {
	defer c.Close()

	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) && c.server.running.Load() && c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			return
		}

		var resp *wire.Response
		req, err := wire.DecodeRequest(data)
		if err != nil {
			resp = &wire.Response{Status: wire.StatusBadRequest, Message: err.Error()}
			if req != nil {
				resp.MessageID = req.MessageID
			}
		} else {
			resp = c.server.dispatch(ctx, req)
		}

		out, err := wire.EncodeResponse(resp)
		if err != nil {
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, fmt.Errorf("encode response: %w", err))
			}
			return
		}
		if err := c.framer.WriteFrame(out); err != nil {
			if c.server.config.OnError != nil && c.server.running.Load() {
				c.server.config.OnError(c, err)
			}
			return
		}
	}
}
