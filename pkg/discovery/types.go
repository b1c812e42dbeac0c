package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of a networked ADB device.
	ServiceType = "_adb-tls-connect._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default device port.
	DefaultPort = 5555

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// TXTVersion is the TXT format version advertised under TXTKeyVersion.
	TXTVersion = "1"
)

// TXT record keys.
const (
	TXTKeySerial  = "serial"
	TXTKeyState   = "state"
	TXTKeyVersion = "v"
)

// Timing constants.
const (
	// BrowseTimeout is the default browse duration.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Discovery errors.
var (
	ErrNotFound        = errors.New("service not found")
	ErrMissingRequired = errors.New("missing required TXT record")
	ErrInvalidPort     = errors.New("invalid port")
)

// DeviceInfo is what is advertised for one device.
type DeviceInfo struct {
	// Serial is the device serial; it also names the instance.
	Serial string

	// State is the connection state (default: "device").
	State string

	// Port is the port the device accepts links on (default: DefaultPort).
	Port uint16
}

// Service is one device found by browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Serial       string
	State        string
}

// Address returns the host:port to connect to, preferring the first
// resolved address over the host name.
func (s *Service) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return joinHostPort(host, s.Port)
}
