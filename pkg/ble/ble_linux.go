package ble

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

const poweredProperty = "org.bluez.Adapter1.Powered"

func newAdapter(id string) *bluetooth.Adapter {
	return bluetooth.NewAdapter(id)
}

func adapterObject(id string) (dbus.BusObject, error) {
	// get system bus
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	return conn.Object("org.bluez", dbus.ObjectPath("/org/bluez/"+id)), nil
}

func powered(id string) (bool, error) {
	// get adapter
	obj, err := adapterObject(id)
	if err != nil {
		return false, err
	}

	// read property
	value, err := obj.GetProperty(poweredProperty)
	if err != nil {
		return false, err
	}

	// check value
	ok, valid := value.Value().(bool)
	if !valid {
		return false, fmt.Errorf("unexpected powered value: %v", value)
	}

	return ok, nil
}

func power(id string) error {
	// get adapter
	obj, err := adapterObject(id)
	if err != nil {
		return err
	}

	return obj.SetProperty(poweredProperty, dbus.MakeVariant(true))
}
