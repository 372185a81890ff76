// Package mdns provides a discovery radio that browses DNS-SD services on the
// local network.
package mdns

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/256dpi/scout/pkg/scan"
)

// DefaultService is the service type browsed if none is specified.
const DefaultService = "_services._dns-sd._udp"

// Location represents a discovered service instance.
type Location struct {
	Instance string
	Hostname string
	Address  string
}

// Discover searches for all instances of the specified service type during
// the provided duration.
func Discover(service string, duration time.Duration) ([]Location, error) {
	// set default service
	if service == "" {
		service = DefaultService
	}

	// prepare context
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	// prepare channels
	done := make(chan []Location, 1)
	entries := make(chan *zeroconf.ServiceEntry, 8)

	// collect addresses
	go func() {
		done <- collect(entries)
	}()

	// perform lookup
	err := browse(ctx, service, entries)
	if err != nil {
		return nil, err
	}

	return <-done, nil
}

func collect(entries <-chan *zeroconf.ServiceEntry) []Location {
	// collect unique locations
	var locations []Location
	seen := map[Location]bool{}
	for entry := range entries {
		if loc, ok := locate(entry); ok && !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}

	return locations
}

// Radio implements scan.Radio by browsing a DNS-SD service type.
type Radio struct {
	service string
	cancel  context.CancelFunc
	mutex   sync.Mutex
}

// New creates a radio that browses the specified service type.
func New(service string) *Radio {
	// set default service
	if service == "" {
		service = DefaultService
	}

	return &Radio{
		service: service,
	}
}

// Present implements the scan.Radio interface. A device is capable if it has
// any multicast interface, regardless of its state.
func (r *Radio) Present() bool {
	return hasInterface(func(flags net.Flags) bool {
		return flags&net.FlagMulticast != 0
	})
}

// Enabled implements the scan.Radio interface. The radio is enabled if an up
// non-loopback multicast interface exists.
func (r *Radio) Enabled() bool {
	return hasInterface(func(flags net.Flags) bool {
		return flags&net.FlagUp != 0 && flags&net.FlagLoopback == 0 && flags&net.FlagMulticast != 0
	})
}

// RequestEnable implements the scan.Radio interface.
func (r *Radio) RequestEnable(done func(error)) {
	go done(fmt.Errorf("enabling network interfaces is not supported"))
}

// Discover implements the scan.Radio interface.
func (r *Radio) Discover(fn func(scan.Event)) (func(), error) {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// check state
	if r.cancel != nil {
		return nil, fmt.Errorf("already browsing")
	}

	// prepare context
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	// forward entries
	entries := make(chan *zeroconf.ServiceEntry, 8)
	go func() {
		for entry := range entries {
			fn(event(entry))
		}
	}()

	// start browsing
	err := browse(ctx, r.service, entries)
	if err != nil {
		cancel()
		r.cancel = nil
		return nil, err
	}

	// prepare stop
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mutex.Lock()
			defer r.mutex.Unlock()
			cancel()
			r.cancel = nil
		})
	}

	return stop, nil
}

func hasInterface(match func(net.Flags) bool) bool {
	// get interfaces
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	// find matching interface
	for _, iface := range ifaces {
		if match(iface.Flags) {
			return true
		}
	}

	return false
}

// browse closes entries once the context is done or if browsing cannot be
// started.
func browse(ctx context.Context, service string, entries chan *zeroconf.ServiceEntry) error {
	// create resolver
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(zeroconf.IPv4))
	if err != nil {
		close(entries)
		return err
	}

	return resolver.Browse(ctx, service, "local.", entries)
}

func locate(entry *zeroconf.ServiceEntry) (Location, bool) {
	// check addresses
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return Location{}, false
	}

	return Location{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		Address:  net.JoinHostPort(entry.AddrIPv4[0].String(), fmt.Sprintf("%d", entry.Port)),
	}, true
}

func event(entry *zeroconf.ServiceEntry) scan.Event {
	// locate entry
	loc, ok := locate(entry)
	if !ok {
		return scan.Event{}
	}

	return scan.Event{
		Device: &scan.Device{
			Name:    loc.Instance,
			Address: loc.Address,
		},
	}
}
