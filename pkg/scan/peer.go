package scan

import (
	"fmt"
	"strings"
)

// Device is the device reference carried by a peer-found event.
type Device struct {
	// The name may be empty if the radio withholds it.
	Name    string
	Address string
}

// Event is a single peer-found notification delivered by a Radio.
type Event struct {
	Device *Device
	RSSI   int16
}

// Peer is a validated discovered peer.
type Peer struct {
	Name    string
	Address string
	RSSI    int16
}

// Record returns the textual record appended to the result list.
func (p Peer) Record() string {
	return fmt.Sprintf("%s - %s", p.Name, p.Address)
}

// Decode validates the provided event and returns the contained peer. An
// event without a device reference or address yields an ErrMalformedEvent.
func Decode(e Event) (Peer, error) {
	// check device
	if e.Device == nil {
		return Peer{}, fmt.Errorf("%w: missing device", ErrMalformedEvent)
	}

	// check address
	addr := strings.TrimSpace(e.Device.Address)
	if addr == "" {
		return Peer{}, fmt.Errorf("%w: missing address", ErrMalformedEvent)
	}

	return Peer{
		Name:    e.Device.Name,
		Address: addr,
		RSSI:    e.RSSI,
	}, nil
}
