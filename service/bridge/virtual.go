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
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/model"
)

// VirtualBridge implements the bridge for a worker without real
// hardware. All pin transitions are recorded, which is also what the
// tests build on.
type VirtualBridge struct {
	mutex   sync.Mutex
	log     zerolog.Logger
	outputs map[model.Pin]*virtualOutputPin
	servos  map[model.Pin]*virtualServoPin
}

// NewVirtualBridge implements the bridge for a virtual worker.
func NewVirtualBridge(log zerolog.Logger) *VirtualBridge {
	return &VirtualBridge{
		log:     log.With().Str("component", "virtual-bridge").Logger(),
		outputs: make(map[model.Pin]*virtualOutputPin),
		servos:  make(map[model.Pin]*virtualServoPin),
	}
}

// Turn Green status led on/off
func (b *VirtualBridge) SetGreenLED(on bool) error {
	b.log.Debug().Bool("on", on).Msg("green led")
	return nil
}

// Turn Red status led on/off
func (b *VirtualBridge) SetRedLED(on bool) error {
	b.log.Debug().Bool("on", on).Msg("red led")
	return nil
}

// Blink Green status led with given duration between on/off
func (b *VirtualBridge) BlinkGreenLED(delay time.Duration) error {
	return nil
}

// Blink Red status led with given duration between on/off
func (b *VirtualBridge) BlinkRedLED(delay time.Duration) error {
	return nil
}

// Output opens the pin with given number as a digital output.
func (b *VirtualBridge) Output(pin model.Pin) (OutputPin, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if existing, found := b.outputs[pin]; found {
		return existing, nil
	}
	p := &virtualOutputPin{bridge: b, pin: pin}
	b.outputs[pin] = p
	return p, nil
}

// Servo opens the PWM capable pin with given number as a servo driver.
func (b *VirtualBridge) Servo(pin model.Pin) (ServoPin, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if existing, found := b.servos[pin]; found {
		return existing, nil
	}
	p := &virtualServoPin{bridge: b, pin: pin}
	b.servos[pin] = p
	return p, nil
}

// Close the bridge, bringing all pins back to a safe state.
func (b *VirtualBridge) Close() error {
	return nil
}

// OutputValues returns all values written to the output with given pin
// number, in write order.
func (b *VirtualBridge) OutputValues(pin model.Pin) []bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if p, found := b.outputs[pin]; found {
		return append([]bool(nil), p.values...)
	}
	return nil
}

// ServoAngles returns all angles written to the servo on given pin
// number, in write order.
func (b *VirtualBridge) ServoAngles(pin model.Pin) []int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if p, found := b.servos[pin]; found {
		return append([]int(nil), p.angles...)
	}
	return nil
}

type virtualOutputPin struct {
	bridge *VirtualBridge
	pin    model.Pin
	values []bool
}

func (p *virtualOutputPin) Write(on bool) error {
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()

	p.values = append(p.values, on)
	p.bridge.log.Debug().Int("pin", int(p.pin)).Bool("on", on).Msg("output write")
	return nil
}

type virtualServoPin struct {
	bridge *VirtualBridge
	pin    model.Pin
	angles []int
}

func (p *virtualServoPin) SetAngle(degrees int) error {
	if degrees < 0 {
		degrees = 0
	} else if degrees > 180 {
		degrees = 180
	}
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()

	p.angles = append(p.angles, degrees)
	p.bridge.log.Debug().Int("pin", int(p.pin)).Int("angle", degrees).Msg("servo write")
	return nil
}
