package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ObjectID is a unique identifier of an object controlled by the worker.
type ObjectID string

// ObjectType identifies a type of real world object.
type ObjectType string

const (
	// ObjectTypePulseOutput holds a digital output high for a fixed
	// duration when triggered.
	ObjectTypePulseOutput ObjectType = "pulse-output"
	// ObjectTypeServoSweep moves a servo through a fixed sequence of
	// angles when triggered.
	ObjectTypeServoSweep ObjectType = "servo-sweep"
)

// ConnectionName is the name of a connection between an object and a device.
type ConnectionName string

const (
	// ConnectionNameOutput is the digital output of a pulse-output object.
	ConnectionNameOutput ConnectionName = "output"
	// ConnectionNameServo is the servo of a servo-sweep object.
	ConnectionNameServo ConnectionName = "servo"
	// ConnectionNameBuzzer is the optional buzzer of a servo-sweep object.
	ConnectionNameBuzzer ConnectionName = "buzzer"
)

// Connection links an object to a hardware device, with optional
// connection specific configuration.
type Connection struct {
	// ID of the device this connection refers to
	DeviceID string `json:"device"`
	// Connection specific configuration
	Config map[string]string `json:"config,omitempty"`
}

// GetIntConfig returns the configuration value for the given key,
// or the given default when no (valid) value is set.
func (c Connection) GetIntConfig(key string, defaultValue int) int {
	if raw, found := c.Config[key]; found {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	return defaultValue
}

// GetBoolConfig returns the configuration value for the given key,
// or the given default when no (valid) value is set.
func (c Connection) GetBoolConfig(key string, defaultValue bool) bool {
	if raw, found := c.Config[key]; found {
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	return defaultValue
}

// GetIntsConfig returns the comma separated list of integers for the
// given key, or the given defaults when no (valid) value is set.
func (c Connection) GetIntsConfig(key string, defaultValues []int) []int {
	raw, found := c.Config[key]
	if !found {
		return defaultValues
	}
	var result []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValues
		}
		result = append(result, v)
	}
	if len(result) == 0 {
		return defaultValues
	}
	return result
}

// Object holds the configuration of a single real world object
// controlled by the worker.
type Object struct {
	// Unique identifier of the object
	ID ObjectID `json:"id"`
	// Type of the object
	Type ObjectType `json:"type"`
	// Command that triggers the reaction sequence of this object.
	// Comparison is an exact, case sensitive match.
	Trigger string `json:"trigger"`
	// Connections to devices
	Connections map[ConnectionName]Connection `json:"connections"`
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (o Object) Validate() error {
	if o.ID == "" {
		return errors.Wrap(ValidationError, "ID is empty")
	}
	if o.Trigger == "" {
		return errors.Wrapf(ValidationError, "Trigger is empty in object '%s'", o.ID)
	}
	switch o.Type {
	case ObjectTypePulseOutput:
		if _, found := o.Connections[ConnectionNameOutput]; !found {
			return errors.Wrapf(ValidationError, "Connection '%s' not found in object '%s'", ConnectionNameOutput, o.ID)
		}
	case ObjectTypeServoSweep:
		if _, found := o.Connections[ConnectionNameServo]; !found {
			return errors.Wrapf(ValidationError, "Connection '%s' not found in object '%s'", ConnectionNameServo, o.ID)
		}
	default:
		return errors.Wrapf(ValidationError, "Unknown object type '%s' in object '%s'", o.Type, o.ID)
	}
	return nil
}
