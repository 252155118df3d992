package devices

import "context"

// Device contains the API that is supported by all types of devices.
type Device interface {
	// Configure is called once to put the device in the desired state.
	Configure(ctx context.Context) error
	// Close brings the device back to a safe state.
	Close(ctx context.Context) error
}

// GPIO contains the API of a single digital output device.
type GPIO interface {
	Device
	// Set the output to the given value
	Set(ctx context.Context, value bool) error
}

// Servo contains the API of a single servo actuator device.
type Servo interface {
	Device
	// SetAngle moves the servo to the given absolute angle in degrees.
	// Values outside [0,180] are clamped.
	SetAngle(ctx context.Context, degrees int) error
}
