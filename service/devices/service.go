package devices

import (
	"context"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/bridge"
)

// Service contains the API that is exposed by the device service.
type Service interface {
	// DeviceByID returns the device with given ID.
	// Return false if not found
	DeviceByID(id string) (Device, bool)
	// Configure is called once to put all devices in the desired state.
	Configure(ctx context.Context) error
	// Close brings all devices back to a safe state.
	Close(ctx context.Context) error
}

type service struct {
	devices           map[string]Device
	configuredDevices map[string]Device
}

// NewService instantiates a new Service and Device's for the given
// device configurations.
func NewService(configs []model.HWDevice, api bridge.API) (Service, error) {
	s := &service{
		devices:           make(map[string]Device),
		configuredDevices: make(map[string]Device),
	}
	for _, c := range configs {
		var dev Device
		var err error
		switch c.Type {
		case model.HWDeviceTypeGPIO:
			dev, err = newGPIO(c, api)
		case model.HWDeviceTypeServo:
			dev, err = newServo(c, api)
		default:
			return nil, errors.Wrapf(model.ValidationError, "Unsupported device type '%s'", c.Type)
		}
		if err != nil {
			return nil, maskAny(err)
		}
		s.devices[c.ID] = dev
	}
	return s, nil
}

// DeviceByID returns the device with given ID.
// Return false if not found or not configured.
func (s *service) DeviceByID(id string) (Device, bool) {
	dev, ok := s.configuredDevices[id]
	return dev, ok
}

// Configure is called once to put all devices in the desired state.
func (s *service) Configure(ctx context.Context) error {
	var ae aerr.AggregateError
	configuredDevices := make(map[string]Device)
	for id, d := range s.devices {
		if err := d.Configure(ctx); err != nil {
			ae.Add(maskAny(err))
		} else {
			configuredDevices[id] = d
		}
	}
	s.configuredDevices = configuredDevices
	return ae.AsError()
}

// Close brings all devices back to a safe state.
func (s *service) Close(ctx context.Context) error {
	var ae aerr.AggregateError
	for _, d := range s.devices {
		if err := d.Close(ctx); err != nil {
			ae.Add(maskAny(err))
		}
	}
	return ae.AsError()
}
