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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
)

const (
	greenLedPin = 23
	redLedPin   = 24

	pwmChipPath = "/sys/class/pwm/pwmchip0"
	// Standard hobby servo timing: 20ms period, 0.5ms..2.5ms pulse.
	servoPeriodNs   = 20000000
	servoMinPulseNs = 500000
	servoMaxPulseNs = 2500000
)

// Hardware PWM channels of the Raspberry Pi (BCM numbering).
var rpiPWMChannels = map[model.Pin]int{
	12: 0,
	18: 0,
	13: 1,
	19: 1,
}

type piBridge struct {
	mutex    sync.Mutex
	greenLed gpio.OutputPin
	redLed   gpio.OutputPin
	outputs  map[model.Pin]gpio.OutputPin
	servos   map[model.Pin]*piServo
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's.
func NewRaspberryPiBridge() (API, error) {
	activeLow := true
	initialValue := false
	greenLed, err := gpio.Output(greenLedPin, activeLow, initialValue)
	if err != nil {
		return nil, maskAny(err)
	}
	redLed, err := gpio.Output(redLedPin, activeLow, initialValue)
	if err != nil {
		return nil, maskAny(err)
	}
	return &piBridge{
		greenLed: greenLed,
		redLed:   redLed,
		outputs:  make(map[model.Pin]gpio.OutputPin),
		servos:   make(map[model.Pin]*piServo),
	}, nil
}

// Turn Green status led on/off
func (p *piBridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Write(on); err != nil {
		return maskAny(err)
	}
	return nil
}

// Turn Red status led on/off
func (p *piBridge) SetRedLED(on bool) error {
	if err := p.redLed.Write(on); err != nil {
		return maskAny(err)
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *piBridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.SetGreenLED(true); err != nil {
		return maskAny(err)
	}
	time.Sleep(delay)
	if err := p.SetGreenLED(false); err != nil {
		return maskAny(err)
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *piBridge) BlinkRedLED(delay time.Duration) error {
	if err := p.SetRedLED(true); err != nil {
		return maskAny(err)
	}
	time.Sleep(delay)
	if err := p.SetRedLED(false); err != nil {
		return maskAny(err)
	}
	return nil
}

// Output opens the pin with given number as a digital output.
func (p *piBridge) Output(pin model.Pin) (OutputPin, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if existing, found := p.outputs[pin]; found {
		return existing, nil
	}
	activeLow := false
	initialValue := false
	out, err := gpio.Output(int(pin), activeLow, initialValue)
	if err != nil {
		return nil, maskAny(err)
	}
	p.outputs[pin] = out
	return out, nil
}

// Servo opens the PWM capable pin with given number as a servo driver.
func (p *piBridge) Servo(pin model.Pin) (ServoPin, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if existing, found := p.servos[pin]; found {
		return existing, nil
	}
	channel, found := rpiPWMChannels[pin]
	if !found {
		return nil, errors.Errorf("Pin %d is not a hardware PWM pin", pin)
	}
	s := &piServo{channel: channel}
	if err := s.configure(); err != nil {
		return nil, maskAny(err)
	}
	p.servos[pin] = s
	return s, nil
}

// Close the bridge, bringing all pins back to a safe state.
func (p *piBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for _, out := range p.outputs {
		if err := out.Write(false); err != nil {
			lastErr = maskAny(err)
		}
	}
	for _, s := range p.servos {
		if err := s.disable(); err != nil {
			lastErr = maskAny(err)
		}
	}
	p.greenLed.Write(false)
	p.redLed.Write(false)
	return lastErr
}

// piServo drives a servo through the sysfs PWM interface.
type piServo struct {
	channel int
}

func (s *piServo) channelPath() string {
	return filepath.Join(pwmChipPath, fmt.Sprintf("pwm%d", s.channel))
}

func (s *piServo) configure() error {
	if _, err := os.Stat(s.channelPath()); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(pwmChipPath, "export"), s.channel); err != nil {
			return maskAny(err)
		}
	}
	if err := writeSysfs(filepath.Join(s.channelPath(), "period"), servoPeriodNs); err != nil {
		return maskAny(err)
	}
	if err := writeSysfs(filepath.Join(s.channelPath(), "enable"), 1); err != nil {
		return maskAny(err)
	}
	return nil
}

// SetAngle moves the servo to the given absolute angle in degrees.
func (s *piServo) SetAngle(degrees int) error {
	if err := writeSysfs(filepath.Join(s.channelPath(), "duty_cycle"), servoPulseNs(degrees)); err != nil {
		return maskAny(err)
	}
	return nil
}

// servoPulseNs maps an angle to a pulse width, clamping the angle to
// 0..180 degrees.
func servoPulseNs(degrees int) int {
	if degrees < 0 {
		degrees = 0
	} else if degrees > 180 {
		degrees = 180
	}
	return servoMinPulseNs + (degrees*(servoMaxPulseNs-servoMinPulseNs))/180
}

func (s *piServo) disable() error {
	if err := writeSysfs(filepath.Join(s.channelPath(), "enable"), 0); err != nil {
		return maskAny(err)
	}
	return nil
}

func writeSysfs(path string, value int) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return maskAny(err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d", value); err != nil {
		return maskAny(err)
	}
	return nil
}
