//    Copyright 2025 The PostureKit Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package bridge

import (
	"time"

	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
)

var maskAny = errors.WithStack

// API of the bridge, the hardware used to connect the worker process
// to the board pins that drive the actual actuators.
type API interface {
	// Turn Green status led on/off
	SetGreenLED(on bool) error
	// Turn Red status led on/off
	SetRedLED(on bool) error
	// Blink Green status led with given duration between on/off
	BlinkGreenLED(delay time.Duration) error
	// Blink Red status led with given duration between on/off
	BlinkRedLED(delay time.Duration) error
	// Output opens the pin with given number as a digital output.
	Output(pin model.Pin) (OutputPin, error)
	// Servo opens the PWM capable pin with given number as a servo driver.
	Servo(pin model.Pin) (ServoPin, error)
	// Close the bridge, bringing all pins back to a safe state.
	Close() error
}

// OutputPin is a single digital output pin.
type OutputPin interface {
	// Write sets the pin high (true) or low (false).
	Write(on bool) error
}

// ServoPin is a single servo actuator.
type ServoPin interface {
	// SetAngle moves the servo to the given absolute angle in degrees.
	// Values outside [0,180] are clamped.
	SetAngle(degrees int) error
}
