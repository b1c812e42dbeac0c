package discovery

import (
	"context"
	"net"
	"slices"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds networked devices over mDNS.
type Browser interface {
	// Browse streams devices as they are found. The channel is closed when
	// ctx ends.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find waits for the device advertising serial.
	Find(ctx context.Context, serial string) (*Service, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find when ctx has no deadline (default: BrowseTimeout).
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse streams devices. Entries for the same instance seen on several
// interfaces are merged and reported once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := serviceFromEntry(entry.Instance, entry.HostName, entry.Port, entry.Text, entryIPs(entry))
				if svc == nil {
					continue
				}
				if existing, found := services[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entryIPs(entry))
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// Find browses until the device advertising serial shows up.
func (b *MDNSBrowser) Find(ctx context.Context, serial string) (*Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range found {
		if svc.Serial == serial {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

func (b *MDNSBrowser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// serviceFromEntry builds a Service from a resolved entry. It returns nil
// when the entry carries no serial.
func serviceFromEntry(instance, host string, port int, text []string, ips []net.IP) *Service {
	info, err := DecodeDeviceTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil
	}
	if port <= 0 || port > 65535 {
		return nil
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return &Service{
		InstanceName: instance,
		Host:         host,
		Port:         uint16(port),
		Addresses:    addrs,
		Serial:       info.Serial,
		State:        info.State,
	}
}

func entryIPs(entry *zeroconf.ServiceEntry) []net.IP {
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return ips
}

func mergeAddresses(existing, added []string) []string {
	for _, a := range added {
		if !slices.Contains(existing, a) {
			existing = append(existing, a)
		}
	}
	return existing
}

func removeAddresses(addresses []string, gone []net.IP) []string {
	return slices.DeleteFunc(addresses, func(a string) bool {
		return slices.ContainsFunc(gone, func(ip net.IP) bool { return ip.String() == a })
	})
}

var _ Browser = (*MDNSBrowser)(nil)
