package devices

import (
	"context"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/bridge"
)

type servoDevice struct {
	config model.HWDevice
	bridge bridge.API
	pin    bridge.ServoPin
}

// newServo creates a new servo device for the given configuration.
func newServo(config model.HWDevice, api bridge.API) (Servo, error) {
	return &servoDevice{
		config: config,
		bridge: api,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *servoDevice) Configure(ctx context.Context) error {
	pin, err := d.bridge.Servo(d.config.Pin)
	if err != nil {
		return maskAny(err)
	}
	d.pin = pin
	return nil
}

// SetAngle moves the servo to the given absolute angle in degrees.
func (d *servoDevice) SetAngle(ctx context.Context, degrees int) error {
	if degrees < 0 {
		degrees = 0
	} else if degrees > 180 {
		degrees = 180
	}
	if err := d.pin.SetAngle(degrees); err != nil {
		return maskAny(err)
	}
	return nil
}

// Close brings the device back to a safe state.
func (d *servoDevice) Close(ctx context.Context) error {
	return nil
}
