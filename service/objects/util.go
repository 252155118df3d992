package objects

import (
	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/devices"
)

// getConnection returns the connection with given name in the given
// object configuration.
func getConnection(config model.Object, name model.ConnectionName) (model.Connection, error) {
	conn, found := config.Connections[name]
	if !found {
		return model.Connection{}, errors.Wrapf(model.ValidationError, "Connection '%s' not found in object '%s'", name, config.ID)
	}
	return conn, nil
}

// getGPIOForConnection resolves the connection with given name to a
// GPIO device.
func getGPIOForConnection(config model.Object, name model.ConnectionName, devService devices.Service) (devices.GPIO, model.Connection, error) {
	conn, err := getConnection(config, name)
	if err != nil {
		return nil, model.Connection{}, maskAny(err)
	}
	dev, found := devService.DeviceByID(conn.DeviceID)
	if !found {
		return nil, model.Connection{}, errors.Wrapf(model.ValidationError, "Device '%s' not found in connection '%s' of object '%s'", conn.DeviceID, name, config.ID)
	}
	gpio, ok := dev.(devices.GPIO)
	if !ok {
		return nil, model.Connection{}, errors.Wrapf(model.ValidationError, "Device '%s' in connection '%s' of object '%s' is not a GPIO", conn.DeviceID, name, config.ID)
	}
	return gpio, conn, nil
}

// getServoForConnection resolves the connection with given name to a
// servo device.
func getServoForConnection(config model.Object, name model.ConnectionName, devService devices.Service) (devices.Servo, model.Connection, error) {
	conn, err := getConnection(config, name)
	if err != nil {
		return nil, model.Connection{}, maskAny(err)
	}
	dev, found := devService.DeviceByID(conn.DeviceID)
	if !found {
		return nil, model.Connection{}, errors.Wrapf(model.ValidationError, "Device '%s' not found in connection '%s' of object '%s'", conn.DeviceID, name, config.ID)
	}
	servo, ok := dev.(devices.Servo)
	if !ok {
		return nil, model.Connection{}, errors.Wrapf(model.ValidationError, "Device '%s' in connection '%s' of object '%s' is not a servo", conn.DeviceID, name, config.ID)
	}
	return servo, conn, nil
}
