package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/wire"
)

// Link constants.
const (
	// LinkVersion is sent as Arg0 of CNXN.
	LinkVersion = 0x01000001

	// MaxChunkSize is the largest WRTE payload a stream sends.
	MaxChunkSize = 256 * 1024

	// DefaultHandshakeTimeout bounds the handshake when ctx has no deadline.
	DefaultHandshakeTimeout = 10 * time.Second

	// HostBanner is the banner a host sends in its CNXN.
	HostBanner = "host::"

	// DefaultDeviceBanner is the banner a device answers with.
	DefaultDeviceBanner = "device::"
)

// Link errors.
var (
	// ErrUnauthorized is returned when the device rejects every credential.
	ErrUnauthorized = errors.New("device unauthorized")

	// ErrHandshake is returned for a malformed handshake.
	ErrHandshake = errors.New("link handshake failed")

	// ErrStreamRejected is returned when the peer refuses to open a service.
	ErrStreamRejected = errors.New("stream rejected")
)

// Signer is the host credential used in the handshake.
// Implemented by adbkey.KeyPair.
type Signer interface {
	Sign(token []byte) ([]byte, error)
	EncodedPublicKey() []byte
}

// LinkConfig configures either end of a device link.
type LinkConfig struct {
	// HandshakeTimeout bounds the handshake (default: DefaultHandshakeTimeout).
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum frame size (default: DefaultMaxMessageSize).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Banner is the device banner sent in CNXN (device side, default: DefaultDeviceBanner).
	Banner string

	// AuthorizedKeys are the host keys the device trusts (device side).
	AuthorizedKeys []*rsa.PublicKey

	// AllowKey is asked about a presented key none of AuthorizedKeys
	// verified. Nil rejects it (device side).
	AllowKey func(pub *rsa.PublicKey, comment string) bool

	// SkipAuth answers CNXN without an AUTH exchange (device side).
	SkipAuth bool
}

func (c LinkConfig) withDefaults() LinkConfig {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Banner == "" {
		c.Banner = DefaultDeviceBanner
	}
	c.Logger = log.OrNoop(c.Logger)
	return c
}

// Link is an authenticated connection to a device carrying multiplexed
// service streams.
type Link struct {
	conn   net.Conn
	framer *Framer
	logger log.Logger
	connID string
	banner string

	mu       sync.Mutex
	streams  map[uint32]*Stream
	nextID   uint32
	incoming []*Stream
	accepted chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func newLink(conn net.Conn, cfg LinkConfig) *Link {
	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, cfg.MaxMessageSize)
	framer.SetLogger(cfg.Logger, connID, log.LayerLink)

	return &Link{
		conn:     conn,
		framer:   framer,
		logger:   cfg.Logger,
		connID:   connID,
		streams:  make(map[uint32]*Stream),
		accepted: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// DialLink connects to the device at address and authenticates with key.
// Errors are returned as they happen; there is no retry.
func DialLink(ctx context.Context, address string, key Signer, cfg LinkConfig) (*Link, error) {
	cfg = cfg.withDefaults()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	l := newLink(conn, cfg)
	if err := l.handshake(ctx, func() error { return l.hostHandshake(key) }); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// Accept runs the device side of the handshake on conn.
func Accept(ctx context.Context, conn net.Conn, cfg LinkConfig) (*Link, error) {
	cfg = cfg.withDefaults()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	l := newLink(conn, cfg)
	if err := l.handshake(ctx, func() error { return l.deviceHandshake(cfg) }); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

func (l *Link) handshake(ctx context.Context, run func() error) error {
	if deadline, ok := ctx.Deadline(); ok {
		l.conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { l.conn.SetDeadline(time.Now()) })
	err := run()
	stop()
	l.conn.SetDeadline(time.Time{})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrHandshake, ctxErr)
		}
		return err
	}

	l.logState("", "CONNECTED", l.banner)
	go l.readLoop()
	return nil
}

func (l *Link) hostHandshake(key Signer) error {
	if err := l.send(wire.CmdConnect, LinkVersion, MaxChunkSize, []byte(HostBanner)); err != nil {
		return err
	}

	sentSignature, sentKey := false, false
	for {
		p, err := l.recv()
		if err != nil {
			if sentKey {
				// The device dropped us after seeing the key.
				return fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}
			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}

		switch p.Command {
		case wire.CmdConnect:
			l.banner = string(p.Data)
			return nil

		case wire.CmdAuth:
			if wire.AuthType(p.Arg0) != wire.AuthToken {
				return fmt.Errorf("%w: unexpected AUTH type %d", ErrHandshake, p.Arg0)
			}
			switch {
			case !sentSignature:
				sig, err := key.Sign(p.Data)
				if err != nil {
					return fmt.Errorf("%w: sign token: %w", ErrHandshake, err)
				}
				if err := l.send(wire.CmdAuth, uint32(wire.AuthSignature), 0, sig); err != nil {
					return err
				}
				sentSignature = true
			case !sentKey:
				pub := append(key.EncodedPublicKey(), 0)
				if err := l.send(wire.CmdAuth, uint32(wire.AuthPublicKey), 0, pub); err != nil {
					return err
				}
				sentKey = true
			default:
				return ErrUnauthorized
			}

		default:
			return fmt.Errorf("%w: unexpected %s", ErrHandshake, p.Command)
		}
	}
}

func (l *Link) deviceHandshake(cfg LinkConfig) error {
	p, err := l.recv()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if p.Command != wire.CmdConnect {
		return fmt.Errorf("%w: expected CNXN, got %s", ErrHandshake, p.Command)
	}
	l.banner = string(p.Data)

	connect := func() error {
		return l.send(wire.CmdConnect, LinkVersion, MaxChunkSize, []byte(cfg.Banner))
	}
	if cfg.SkipAuth {
		return connect()
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	if err := l.send(wire.CmdAuth, uint32(wire.AuthToken), 0, token); err != nil {
		return err
	}

	p, err = l.recv()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if p.Command != wire.CmdAuth || wire.AuthType(p.Arg0) != wire.AuthSignature {
		return fmt.Errorf("%w: expected AUTH signature", ErrHandshake)
	}
	sig := p.Data
	for _, pub := range cfg.AuthorizedKeys {
		if adbkey.Verify(pub, token, sig) == nil {
			return connect()
		}
	}

	// Unknown signer: ask for the key with a fresh token.
	second, err := newToken()
	if err != nil {
		return err
	}
	if err := l.send(wire.CmdAuth, uint32(wire.AuthToken), 0, second); err != nil {
		return err
	}
	p, err = l.recv()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if p.Command != wire.CmdAuth || wire.AuthType(p.Arg0) != wire.AuthPublicKey {
		return ErrUnauthorized
	}

	pub, comment, err := adbkey.ParsePublicKey(p.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if adbkey.Verify(pub, token, sig) != nil {
		return ErrUnauthorized
	}
	if cfg.AllowKey == nil || !cfg.AllowKey(pub, comment) {
		return ErrUnauthorized
	}
	return connect()
}

func newToken() ([]byte, error) {
	token := make([]byte, wire.TokenSize)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Banner returns the banner the peer sent in its CNXN.
func (l *Link) Banner() string {
	return l.banner
}

// ConnID returns the link's connection identifier.
func (l *Link) ConnID() string {
	return l.connID
}

// RemoteAddr returns the peer address.
func (l *Link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}

// Done is closed when the link goes down.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns why the link went down, or nil while it is up.
func (l *Link) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Close tears the link down and closes every stream.
func (l *Link) Close() error {
	err := l.conn.Close()
	l.shutdown(ErrConnectionClosed)
	return err
}

// Open opens a stream to service on the peer.
func (l *Link) Open(ctx context.Context, service string) (*Stream, error) {
	l.mu.Lock()
	select {
	case <-l.done:
		l.mu.Unlock()
		return nil, l.err
	default:
	}
	l.nextID++
	s := newStream(l, l.nextID, service)
	l.streams[s.localID] = s
	l.mu.Unlock()

	if err := l.send(wire.CmdOpen, s.localID, 0, []byte(service)); err != nil {
		l.forget(s.localID)
		return nil, err
	}

	select {
	case <-s.opened:
		return s, nil
	case <-s.closed:
		return nil, fmt.Errorf("%w: %s", ErrStreamRejected, service)
	case <-l.done:
		return nil, l.err
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

// AcceptStream waits for the peer to open a stream. Streams the peer opened
// are queued until accepted, so a burst of opens never gets refused.
func (l *Link) AcceptStream(ctx context.Context) (*Stream, error) {
	for {
		l.mu.Lock()
		if len(l.incoming) > 0 {
			s := l.incoming[0]
			l.incoming = l.incoming[1:]
			l.mu.Unlock()
			return s, nil
		}
		l.mu.Unlock()

		select {
		case <-l.accepted:
		case <-l.done:
			return nil, l.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Link) send(cmd wire.Command, arg0, arg1 uint32, data []byte) error {
	out, err := wire.EncodePacket(&wire.Packet{Command: cmd, Arg0: arg0, Arg1: arg1, Data: data})
	if err != nil {
		return err
	}
	if err := l.framer.WriteFrame(out); err != nil {
		select {
		case <-l.done:
			return l.err
		default:
		}
		return err
	}
	return nil
}

func (l *Link) recv() (*wire.Packet, error) {
	data, err := l.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.DecodePacket(data)
}

func (l *Link) readLoop() {
	for {
		p, err := l.recv()
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				err = ErrConnectionClosed
			}
			l.shutdown(err)
			return
		}
		l.handle(p)
	}
}

func (l *Link) handle(p *wire.Packet) {
	switch p.Command {
	case wire.CmdOpen:
		l.mu.Lock()
		l.nextID++
		s := newStream(l, l.nextID, string(p.Data))
		s.remoteID = p.Arg0
		close(s.opened)
		l.streams[s.localID] = s
		l.incoming = append(l.incoming, s)
		l.mu.Unlock()

		select {
		case l.accepted <- struct{}{}:
		default:
		}
		l.send(wire.CmdOkay, s.localID, s.remoteID, nil)

	case wire.CmdOkay:
		if s := l.lookup(p.Arg1); s != nil {
			s.okay(p.Arg0)
		}

	case wire.CmdWrite:
		s := l.lookup(p.Arg1)
		if s == nil {
			l.send(wire.CmdClose, 0, p.Arg0, nil)
			return
		}
		s.deliver(p.Data)
		l.send(wire.CmdOkay, s.localID, s.remoteID, nil)

	case wire.CmdClose:
		if s := l.lookup(p.Arg1); s != nil {
			l.forget(s.localID)
			s.markClosed()
		}
	}
}

func (l *Link) lookup(id uint32) *Stream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streams[id]
}

func (l *Link) forget(id uint32) {
	l.mu.Lock()
	delete(l.streams, id)
	l.mu.Unlock()
}

func (l *Link) shutdown(err error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.err = err
		streams := l.streams
		l.streams = make(map[uint32]*Stream)
		l.incoming = nil
		l.mu.Unlock()

		l.conn.Close()
		close(l.done)
		for _, s := range streams {
			s.markClosed()
		}
		l.logState("CONNECTED", "DISCONNECTED", err.Error())
	})
}

func (l *Link) logState(oldState, newState, reason string) {
	l.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.connID,
		Layer:        log.LayerLink,
		Category:     log.CategoryState,
		RemoteAddr:   l.conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Stream is one service stream on a Link.
type Stream struct {
	link     *Link
	localID  uint32
	remoteID uint32
	service  string

	opened chan struct{}
	acks   chan struct{}
	notify chan struct{}
	closed chan struct{}

	mu        sync.Mutex
	queue     [][]byte
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newStream(l *Link, id uint32, service string) *Stream {
	return &Stream{
		link:    l,
		localID: id,
		service: service,
		opened:  make(chan struct{}),
		acks:    make(chan struct{}, 1),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Service returns the service name the stream was opened with.
func (s *Stream) Service() string {
	return s.service
}

// Write sends p, waiting for the peer to acknowledge each chunk.
func (s *Stream) Write(ctx context.Context, p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for len(p) > 0 {
		n := min(len(p), MaxChunkSize)
		select {
		case <-s.closed:
			return ErrConnectionClosed
		default:
		}
		if err := s.link.send(wire.CmdWrite, s.localID, s.remoteID, p[:n]); err != nil {
			return err
		}

		select {
		case <-s.acks:
		case <-s.closed:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
		p = p[n:]
	}
	return nil
}

// Read returns the next chunk the peer wrote. It returns io.EOF once the
// stream is closed and every received chunk has been read.
func (s *Stream) Read(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return chunk, nil
		}
		s.mu.Unlock()

		select {
		case <-s.closed:
			s.mu.Lock()
			empty := len(s.queue) == 0
			s.mu.Unlock()
			if empty {
				return nil, io.EOF
			}
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close closes the stream and tells the peer.
func (s *Stream) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	s.link.forget(s.localID)
	s.markClosed()

	select {
	case <-s.link.done:
		return nil
	default:
	}
	return s.link.send(wire.CmdClose, s.localID, s.remoteID, nil)
}

func (s *Stream) okay(remoteID uint32) {
	select {
	case <-s.opened:
		select {
		case s.acks <- struct{}{}:
		default:
		}
	default:
		s.remoteID = remoteID
		close(s.opened)
	}
}

func (s *Stream) deliver(data []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Stream) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}
