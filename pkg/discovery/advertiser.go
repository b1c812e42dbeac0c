package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser advertises devices over mDNS.
type Advertiser interface {
	// Advertise starts (or restarts) advertising a device.
	Advertise(info *DeviceInfo) error

	// Stop stops advertising serial.
	Stop(serial string) error

	// StopAll stops every advertisement.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL (default: DefaultTTL).
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server // keyed by serial
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}
}

// Advertise registers the device's service, replacing an earlier one for
// the same serial.
func (a *MDNSAdvertiser) Advertise(info *DeviceInfo) error {
	if info.Serial == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, ok := a.servers[info.Serial]; ok {
		server.Shutdown()
		delete(a.servers, info.Serial)
	}

	server, err := zeroconf.Register(
		InstanceName(info.Serial),
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeDeviceTXT(info)),
		a.interfaces(),
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", info.Serial, err)
	}

	a.servers[info.Serial] = server
	return nil
}

// Update replaces the TXT records of an advertised device.
func (a *MDNSAdvertiser) Update(info *DeviceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[info.Serial]
	if !ok {
		return ErrNotFound
	}
	server.SetText(TXTRecordsToStrings(EncodeDeviceTXT(info)))
	return nil
}

// Stop stops advertising serial.
func (a *MDNSAdvertiser) Stop(serial string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[serial]
	if !ok {
		return ErrNotFound
	}
	server.Shutdown()
	delete(a.servers, serial)
	return nil
}

// StopAll stops every advertisement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for serial, server := range a.servers {
		server.Shutdown()
		delete(a.servers, serial)
	}
}

// Advertised returns the number of active advertisements.
func (a *MDNSAdvertiser) Advertised() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.servers)
}

// interfaces returns nil to use all interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

var _ Advertiser = (*MDNSAdvertiser)(nil)
