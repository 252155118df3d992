package model

import (
	"github.com/pkg/errors"
)

// HWDeviceType identifies a type of hardware device.
type HWDeviceType string

const (
	// HWDeviceTypeGPIO is a single digital output pin.
	HWDeviceTypeGPIO HWDeviceType = "gpio"
	// HWDeviceTypeServo is a servo actuator on a PWM capable pin.
	HWDeviceTypeServo HWDeviceType = "servo"
)

// HWDevice holds the configuration of a single hardware device
// attached to the worker.
type HWDevice struct {
	// Unique identifier of the device
	ID string `json:"id"`
	// Type of the device
	Type HWDeviceType `json:"type"`
	// Pin number on the board (1...)
	Pin Pin `json:"pin"`
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (d HWDevice) Validate() error {
	if d.ID == "" {
		return errors.Wrap(ValidationError, "ID is empty")
	}
	switch d.Type {
	case HWDeviceTypeGPIO, HWDeviceTypeServo:
		// Ok
	default:
		return errors.Wrapf(ValidationError, "Unknown device type '%s' in device '%s'", d.Type, d.ID)
	}
	if !d.Pin.IsValid() {
		return errors.Wrapf(ValidationError, "Invalid pin %d in device '%s'", d.Pin, d.ID)
	}
	return nil
}
