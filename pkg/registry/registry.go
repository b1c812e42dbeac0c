package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/transport"
)

// ServerVersion is the protocol version reported to clients.
const ServerVersion = 31

// Registry errors.
var (
	ErrDeviceExists   = errors.New("device already registered")
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoKey          = errors.New("no key pair configured")
)

// Dialer opens the downstream link for a networked device.
type Dialer interface {
	Dial(ctx context.Context, address string) (device.Downstream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (device.Downstream, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (device.Downstream, error) {
	return f(ctx, address)
}

// LinkDialer dials a transport.Link authenticated with Key.
type LinkDialer struct {
	Key    *adbkey.KeyPair
	Config transport.LinkConfig
}

// Dial connects and runs the link handshake.
func (d LinkDialer) Dial(ctx context.Context, address string) (device.Downstream, error) {
	if d.Key == nil {
		return nil, ErrNoKey
	}
	link, err := transport.DialLink(ctx, address, d.Key, d.Config)
	if err != nil {
		return nil, err
	}
	return link.Downstream(), nil
}

// Config configures a Registry.
type Config struct {
	// KeyPair authenticates bridged connections. Used by the default Dialer.
	KeyPair *adbkey.KeyPair

	// Dialer opens bridge links (default: LinkDialer with KeyPair).
	Dialer Dialer

	// ReadTimeout bounds a bridged shell command (0 = none).
	ReadTimeout time.Duration

	// Logger receives protocol events from every device (optional).
	Logger log.Logger

	// Slog receives operational logs (default: slog.Default()).
	Slog *slog.Logger

	// OnAdd is called after a device is registered.
	OnAdd func(info device.Info)

	// OnRemove is called after a device is removed.
	OnRemove func(serial string)
}

// entry is one registered device. bridge is nil for scripted devices.
type entry struct {
	dev    device.Device
	bridge *device.Bridge
}

// Registry owns the simulated devices, in registration order.
type Registry struct {
	config Config
	dialer Dialer
	logger *slog.Logger

	mu      sync.RWMutex
	devices []entry
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	cfg.Logger = log.OrNoop(cfg.Logger)
	if cfg.Slog == nil {
		cfg.Slog = slog.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = LinkDialer{Key: cfg.KeyPair, Config: transport.LinkConfig{Logger: cfg.Logger}}
	}
	return &Registry{
		config: cfg,
		dialer: dialer,
		logger: cfg.Slog,
	}
}

// Add registers a scripted device. The optional state defaults to "device".
func (r *Registry) Add(serial string, state ...string) error {
	cfg := r.deviceConfig()
	if len(state) > 0 && state[0] != "" {
		cfg.State = state[0]
	}
	return r.register(entry{dev: device.NewScripted(serial, cfg)})
}

func (r *Registry) register(e entry) error {
	serial := e.dev.Serial()

	r.mu.Lock()
	if r.find(serial) >= 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceExists, serial)
	}
	r.devices = append(r.devices, e)
	r.mu.Unlock()

	r.logger.Debug("device registered", "serial", serial, "state", e.dev.State(), "bridged", e.bridge != nil)
	if r.config.OnAdd != nil {
		r.config.OnAdd(device.Info{Serial: serial, State: e.dev.State()})
	}
	return nil
}

// Remove unregisters a device, closing its link if it is bridged.
func (r *Registry) Remove(serial string) error {
	r.mu.Lock()
	i := r.find(serial)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}
	e := r.devices[i]
	r.devices = append(r.devices[:i:i], r.devices[i+1:]...)
	r.mu.Unlock()

	var err error
	if e.bridge != nil {
		err = e.bridge.Close()
	}
	if r.config.OnRemove != nil {
		r.config.OnRemove(serial)
	}
	return err
}

// Close closes every bridge link. Devices stay registered so they can
// still be verified.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, e := range r.devices {
		if e.bridge != nil {
			if err := e.bridge.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", e.dev.Serial(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// ExpectPush declares a push to path on serial.
func (r *Registry) ExpectPush(serial, path string) (*expect.FileExpectation, error) {
	d, err := r.declarer(serial)
	if err != nil {
		return nil, err
	}
	return d.ExpectPush(path), nil
}

// ExpectPull declares a pull of path from serial.
func (r *Registry) ExpectPull(serial, path string) (*expect.FileExpectation, error) {
	d, err := r.declarer(serial)
	if err != nil {
		return nil, err
	}
	return d.ExpectPull(path), nil
}

// ExpectShell declares command on serial.
func (r *Registry) ExpectShell(serial, command string) (*expect.ShellExpectation, error) {
	d, err := r.declarer(serial)
	if err != nil {
		return nil, err
	}
	return d.ExpectShell(command), nil
}

// ExpectList declares a listing of path on serial.
func (r *Registry) ExpectList(serial, path string) (*expect.ListExpectation, error) {
	d, err := r.declarer(serial)
	if err != nil {
		return nil, err
	}
	return d.ExpectList(path), nil
}

// ExpectTcpip declares a switch of serial to network mode on port.
func (r *Registry) ExpectTcpip(serial string, port int) error {
	d, err := r.declarer(serial)
	if err != nil {
		return err
	}
	d.ExpectTcpip(port)
	return nil
}

// Unmet returns every failure across all devices, in registration order.
func (r *Registry) Unmet() []*expect.AssertionError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*expect.AssertionError
	for _, e := range r.devices {
		out = append(out, e.dev.Unmet()...)
	}
	return out
}

// Verify reports each failure to t as a separate assertion and returns
// true when there were none.
func (r *Registry) Verify(t assert.TestingT) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	failures := r.Unmet()
	for _, f := range failures {
		assert.Fail(t, f.Error())
	}
	return len(failures) == 0
}

// Version returns ServerVersion.
func (r *Registry) Version() int {
	return ServerVersion
}

// Devices lists the registered devices in registration order.
func (r *Registry) Devices() []device.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]device.Info, 0, len(r.devices))
	for _, e := range r.devices {
		out = append(out, device.Info{Serial: e.dev.Serial(), State: e.dev.State()})
	}
	return out
}

// IsDeviceConnected reports whether serial is registered.
func (r *Registry) IsDeviceConnected(serial string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(serial) >= 0
}

// Lookup returns the responder registered under serial.
func (r *Registry) Lookup(serial string) (device.Responder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.find(serial); i >= 0 {
		return r.devices[i].dev, true
	}
	return nil, false
}

// OnDeviceConnect bridges the networked device at serial (host:port).
// It returns false with no error when serial is not host:port or is
// already registered. Dial and handshake errors are returned unchanged.
func (r *Registry) OnDeviceConnect(ctx context.Context, serial string) (bool, error) {
	if _, _, err := net.SplitHostPort(serial); err != nil {
		return false, nil
	}
	if r.IsDeviceConnected(serial) {
		return false, nil
	}

	link, err := r.dialer.Dial(ctx, serial)
	if err != nil {
		r.logger.Warn("device connect failed", "serial", serial, "error", err)
		return false, err
	}

	bridge := device.NewBridge(serial, link, r.deviceConfig())
	if err := r.register(entry{dev: bridge, bridge: bridge}); err != nil {
		link.Close()
		return false, err
	}
	r.logger.Info("device connected", "serial", serial)
	return true, nil
}

func (r *Registry) deviceConfig() device.Config {
	return device.Config{
		Logger:      r.config.Logger,
		ReadTimeout: r.config.ReadTimeout,
	}
}

func (r *Registry) declarer(serial string) (device.Declarer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.find(serial)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}
	return r.devices[i].dev, nil
}

// find returns the index of serial or -1. Callers hold mu.
func (r *Registry) find(serial string) int {
	for i, e := range r.devices {
		if e.dev.Serial() == serial {
			return i
		}
	}
	return -1
}

var _ transport.Directory = (*Registry)(nil)
