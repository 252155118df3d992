package devices

import (
	"context"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/bridge"
)

type gpioDevice struct {
	config model.HWDevice
	bridge bridge.API
	pin    bridge.OutputPin
}

// newGPIO creates a new digital output device for the given configuration.
func newGPIO(config model.HWDevice, api bridge.API) (GPIO, error) {
	return &gpioDevice{
		config: config,
		bridge: api,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *gpioDevice) Configure(ctx context.Context) error {
	pin, err := d.bridge.Output(d.config.Pin)
	if err != nil {
		return maskAny(err)
	}
	d.pin = pin
	// Start low
	if err := d.pin.Write(false); err != nil {
		return maskAny(err)
	}
	return nil
}

// Set the output to the given value
func (d *gpioDevice) Set(ctx context.Context, value bool) error {
	if err := d.pin.Write(value); err != nil {
		return maskAny(err)
	}
	return nil
}

// Close brings the device back to a safe state.
func (d *gpioDevice) Close(ctx context.Context) error {
	if d.pin != nil {
		if err := d.pin.Write(false); err != nil {
			return maskAny(err)
		}
	}
	return nil
}
