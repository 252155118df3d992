// Copyright 2025 The PostureKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objects

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/devices"
)

// servoSweep moves a servo through a fixed sequence of absolute angles
// when triggered, pausing between positions, followed by a hold during
// which further input is ignored. An optional buzzer output is
// configured at startup and, when beep is set, driven high for the
// duration of the sweep.
type servoSweep struct {
	mutex    sync.Mutex
	log      zerolog.Logger
	config   model.Object
	clock    clock.Clock
	triggers chan TriggerRequest

	servoDevice devices.Servo
	angles      []int
	pause       time.Duration
	hold        time.Duration

	buzzer struct {
		device devices.GPIO
		beep   bool
	}

	busy          bool
	angle         int
	triggerCount  uint64
	lastTriggered time.Time
}

// newServoSweep creates a new servo-sweep object for the given configuration.
func newServoSweep(config model.Object, log zerolog.Logger, devService devices.Service, clk clock.Clock) (Object, error) {
	servoDev, conn, err := getServoForConnection(config, model.ConnectionNameServo, devService)
	if err != nil {
		return nil, maskAny(err)
	}
	sw := &servoSweep{
		log:         log,
		config:      config,
		clock:       clk,
		triggers:    make(chan TriggerRequest),
		servoDevice: servoDev,
		angles:      conn.GetIntsConfig("angles", []int{0, 90, 180}),
		pause:       time.Duration(conn.GetIntConfig("pause", 1000)) * time.Millisecond,
		hold:        time.Duration(conn.GetIntConfig("hold", 500)) * time.Millisecond,
	}

	// Optional buzzer
	if buzzerConn, found := config.Connections[model.ConnectionNameBuzzer]; found {
		buzzerDev, _, err := getGPIOForConnection(config, model.ConnectionNameBuzzer, devService)
		if err != nil {
			return nil, maskAny(err)
		}
		sw.buzzer.device = buzzerDev
		sw.buzzer.beep = buzzerConn.GetBoolConfig("beep", false)
	}

	return sw, nil
}

// Return the type of this object.
func (o *servoSweep) Type() model.ObjectType {
	return model.ObjectTypeServoSweep
}

// Trigger returns the command that starts the reaction sequence.
func (o *servoSweep) Trigger() string {
	return o.config.Trigger
}

// Configure is called once to put the object in the desired state.
// The buzzer output (when present) starts low through its device, so
// there is nothing to write here.
func (o *servoSweep) Configure(ctx context.Context) error {
	return nil
}

// Run the object until the given context is cancelled.
func (o *servoSweep) Run(ctx context.Context, requests RequestService, sink ActualSink) error {
	defer o.log.Debug().Msg("servoSweep.Run terminated")

	cancel := requests.RegisterTriggerReceiver(func(req TriggerRequest) {
		if req.Command != o.config.Trigger {
			// Not for us
			return
		}
		select {
		case o.triggers <- req:
			// Accepted
		default:
			// A sweep is running, the device is unresponsive.
			triggersDroppedTotal.WithLabelValues(string(o.config.ID)).Inc()
			o.log.Debug().Str("command", req.Command).Msg("trigger dropped while busy")
		}
	})
	defer cancel()

	for {
		select {
		case req := <-o.triggers:
			if err := o.runSequence(ctx, req, sink); err != nil {
				return maskAny(err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// runSequence performs the fixed sweep through all angles.
// It runs to completion, only process shutdown interrupts it.
func (o *servoSweep) runSequence(ctx context.Context, req TriggerRequest, sink ActualSink) error {
	o.mutex.Lock()
	o.busy = true
	o.triggerCount++
	o.lastTriggered = req.Time
	o.mutex.Unlock()
	sequencesStartedTotal.WithLabelValues(string(o.config.ID)).Inc()
	sequenceBusyGauge.WithLabelValues(string(o.config.ID)).Set(1)
	defer sequenceBusyGauge.WithLabelValues(string(o.config.ID)).Set(0)
	sink.PublishActual(ctx, o.Actual())

	if o.buzzer.device != nil && o.buzzer.beep {
		if err := o.buzzer.device.Set(ctx, true); err != nil {
			o.log.Warn().Err(err).Msg("Failed to start buzzer")
		}
	}

	for _, angle := range o.angles {
		o.log.Debug().Int("angle", angle).Msg("Set servo")
		if err := o.servoDevice.SetAngle(ctx, angle); err != nil {
			o.log.Warn().Err(err).Int("angle", angle).Msg("Set servo failed")
		} else {
			o.setAngle(angle)
		}
		if err := waitFor(ctx, o.clock.After(o.pause)); err != nil {
			return maskAny(err)
		}
	}

	if o.buzzer.device != nil && o.buzzer.beep {
		if err := o.buzzer.device.Set(ctx, false); err != nil {
			o.log.Warn().Err(err).Msg("Failed to stop buzzer")
		}
	}

	// Hold, input remains ignored
	if o.hold > 0 {
		if err := waitFor(ctx, o.clock.After(o.hold)); err != nil {
			return maskAny(err)
		}
	}

	o.mutex.Lock()
	o.busy = false
	o.mutex.Unlock()
	sink.PublishActual(ctx, o.Actual())
	return nil
}

// setAngle records the angle the device actually moved to.
// The device layer clamps writes to 0..180 degrees, so the recorded
// state must not exceed those bounds either.
func (o *servoSweep) setAngle(angle int) {
	if angle < 0 {
		angle = 0
	} else if angle > 180 {
		angle = 180
	}
	o.mutex.Lock()
	o.angle = angle
	o.mutex.Unlock()
}

// Actual returns the current actual state of the object.
func (o *servoSweep) Actual() ActualState {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	angle := o.angle
	return ActualState{
		ID:            o.config.ID,
		Type:          model.ObjectTypeServoSweep,
		Busy:          o.busy,
		TriggerCount:  o.triggerCount,
		LastTriggered: o.lastTriggered,
		Angle:         &angle,
	}
}
