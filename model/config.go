package model

import (
	"github.com/pkg/errors"
)

// LocalConfiguration holds the configuration of a single actuator worker.
type LocalConfiguration struct {
	// Serial command channel configuration
	Serial SerialConfig `json:"serial"`
	// List of devices attached to the worker
	Devices []HWDevice `json:"devices,omitempty"`
	// List of real world objects controlled by the worker
	Objects []Object `json:"objects,omitempty"`
}

// DeviceByID returns the device with given ID.
// Return false if not found.
func (c LocalConfiguration) DeviceByID(id string) (HWDevice, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return HWDevice{}, false
}

// ObjectByID returns the object with given ID.
// Return false if not found.
func (c LocalConfiguration) ObjectByID(id ObjectID) (Object, bool) {
	for _, x := range c.Objects {
		if x.ID == id {
			return x, true
		}
	}
	return Object{}, false
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c LocalConfiguration) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return maskAny(err)
	}
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return maskAny(err)
		}
	}
	triggers := make(map[string]ObjectID)
	for _, o := range c.Objects {
		if err := o.Validate(); err != nil {
			return maskAny(err)
		}
		if existing, found := triggers[o.Trigger]; found {
			return errors.Wrapf(ValidationError, "Trigger '%s' of object '%s' is already used by object '%s'", o.Trigger, o.ID, existing)
		}
		triggers[o.Trigger] = o.ID
		for name, conn := range o.Connections {
			if _, found := c.DeviceByID(conn.DeviceID); !found {
				return errors.Wrapf(ValidationError, "Device '%s' not found in connection '%s' of object '%s'", conn.DeviceID, name, o.ID)
			}
		}
	}
	return nil
}
