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

// pulseOutput holds a digital output high for a fixed duration when
// triggered. This is the serial controlled pulse sketch: one matching
// command, one fixed high pulse, no state in between.
type pulseOutput struct {
	mutex    sync.Mutex
	log      zerolog.Logger
	config   model.Object
	clock    clock.Clock
	triggers chan TriggerRequest

	outputDevice devices.GPIO
	duration     time.Duration

	busy          bool
	output        bool
	triggerCount  uint64
	lastTriggered time.Time
}

// newPulseOutput creates a new pulse-output object for the given configuration.
func newPulseOutput(config model.Object, log zerolog.Logger, devService devices.Service, clk clock.Clock) (Object, error) {
	outputDev, conn, err := getGPIOForConnection(config, model.ConnectionNameOutput, devService)
	if err != nil {
		return nil, maskAny(err)
	}
	return &pulseOutput{
		log:          log,
		config:       config,
		clock:        clk,
		triggers:     make(chan TriggerRequest),
		outputDevice: outputDev,
		duration:     time.Duration(conn.GetIntConfig("duration", 1000)) * time.Millisecond,
	}, nil
}

// Return the type of this object.
func (o *pulseOutput) Type() model.ObjectType {
	return model.ObjectTypePulseOutput
}

// Trigger returns the command that starts the reaction sequence.
func (o *pulseOutput) Trigger() string {
	return o.config.Trigger
}

// Configure is called once to put the object in the desired state.
// The output device itself starts low, so there is nothing to write here.
func (o *pulseOutput) Configure(ctx context.Context) error {
	o.mutex.Lock()
	o.output = false
	o.mutex.Unlock()
	return nil
}

// Run the object until the given context is cancelled.
func (o *pulseOutput) Run(ctx context.Context, requests RequestService, sink ActualSink) error {
	defer o.log.Debug().Msg("pulseOutput.Run terminated")

	cancel := requests.RegisterTriggerReceiver(func(req TriggerRequest) {
		if req.Command != o.config.Trigger {
			// Not for us
			return
		}
		select {
		case o.triggers <- req:
			// Accepted
		default:
			// A sequence is running, the device is unresponsive.
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

// runSequence performs the fixed high pulse.
// It runs to completion, only process shutdown interrupts it.
func (o *pulseOutput) runSequence(ctx context.Context, req TriggerRequest, sink ActualSink) error {
	o.mutex.Lock()
	o.busy = true
	o.triggerCount++
	o.lastTriggered = req.Time
	o.mutex.Unlock()
	sequencesStartedTotal.WithLabelValues(string(o.config.ID)).Inc()
	sequenceBusyGauge.WithLabelValues(string(o.config.ID)).Set(1)
	defer sequenceBusyGauge.WithLabelValues(string(o.config.ID)).Set(0)
	sink.PublishActual(ctx, o.Actual())

	if err := o.outputDevice.Set(ctx, true); err != nil {
		o.log.Warn().Err(err).Msg("Failed to set output high")
	} else {
		o.setOutput(true)
	}
	if err := waitFor(ctx, o.clock.After(o.duration)); err != nil {
		return maskAny(err)
	}
	if err := o.outputDevice.Set(ctx, false); err != nil {
		o.log.Warn().Err(err).Msg("Failed to set output low")
	} else {
		o.setOutput(false)
	}

	o.mutex.Lock()
	o.busy = false
	o.mutex.Unlock()
	sink.PublishActual(ctx, o.Actual())
	return nil
}

func (o *pulseOutput) setOutput(value bool) {
	o.mutex.Lock()
	o.output = value
	o.mutex.Unlock()
}

// Actual returns the current actual state of the object.
func (o *pulseOutput) Actual() ActualState {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	output := o.output
	return ActualState{
		ID:            o.config.ID,
		Type:          model.ObjectTypePulseOutput,
		Busy:          o.busy,
		TriggerCount:  o.triggerCount,
		LastTriggered: o.lastTriggered,
		Output:        &output,
	}
}
