// Package ble provides a discovery radio backed by the system Bluetooth
// adapter.
package ble

import (
	"errors"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/256dpi/scout/pkg/scan"
)

// DefaultAdapter is the adapter used if none is specified.
const DefaultAdapter = "hci0"

// errors returned synchronously by Scan are expected within this period
const startupGrace = 50 * time.Millisecond

// ErrScanning is returned if a discovery session is already running.
var ErrScanning = errors.New("already scanning")

// Radio implements scan.Radio using a Bluetooth adapter.
type Radio struct {
	id       string
	adapter  *bluetooth.Adapter
	scanning bool
	mutex    sync.Mutex
}

// New creates a radio for the adapter with the specified id.
func New(id string) *Radio {
	// set default id
	if id == "" {
		id = DefaultAdapter
	}

	return &Radio{
		id:      id,
		adapter: newAdapter(id),
	}
}

// ID returns the adapter id.
func (r *Radio) ID() string {
	return r.id
}

// Present implements the scan.Radio interface.
func (r *Radio) Present() bool {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.enable() == nil
}

// Enabled implements the scan.Radio interface.
func (r *Radio) Enabled() bool {
	// check presence
	if !r.Present() {
		return false
	}

	// check power
	ok, err := powered(r.id)
	if err != nil {
		return false
	}

	return ok
}

// RequestEnable implements the scan.Radio interface.
func (r *Radio) RequestEnable(done func(error)) {
	go func() {
		done(power(r.id))
	}()
}

// Discover implements the scan.Radio interface.
func (r *Radio) Discover(fn func(scan.Event)) (func(), error) {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// check state
	if r.scanning {
		return nil, ErrScanning
	}

	// enable adapter
	err := r.enable()
	if err != nil {
		return nil, err
	}

	// start scanning
	errs := make(chan error, 1)
	go func() {
		errs <- r.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			fn(convert(result))
		})
	}()

	// check immediate failure
	select {
	case err := <-errs:
		if err == nil {
			err = errors.New("scan ended unexpectedly")
		}
		return nil, err
	case <-time.After(startupGrace):
	}

	// set flag
	r.scanning = true

	// prepare stop
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mutex.Lock()
			defer r.mutex.Unlock()
			_ = r.adapter.StopScan()
			r.scanning = false
		})
	}

	return stop, nil
}

func (r *Radio) enable() error {
	// enable BLE adapter
	err := r.adapter.Enable()
	if err != nil && !strings.Contains(err.Error(), "already calling Enable function") {
		return err
	}

	return nil
}

func convert(result bluetooth.ScanResult) scan.Event {
	return scan.Event{
		Device: &scan.Device{
			Name:    result.LocalName(),
			Address: result.Address.String(),
		},
		RSSI: result.RSSI,
	}
}
