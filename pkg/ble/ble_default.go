//go:build !linux

package ble

import (
	"errors"

	"tinygo.org/x/bluetooth"
)

func newAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}

func powered(string) (bool, error) {
	return true, nil
}

func power(string) error {
	return errors.New("enabling the radio is not supported on this platform")
}
