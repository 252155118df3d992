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
	"time"

	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
)

var maskAny = errors.WithStack

// Object contains the API supported by all types of objects.
type Object interface {
	// Return the type of this object.
	Type() model.ObjectType
	// Trigger returns the command that starts the reaction sequence
	// of this object.
	Trigger() string
	// Configure is called once to put the object in the desired state.
	Configure(ctx context.Context) error
	// Run the object until the given context is cancelled.
	// Trigger requests are received from the given request service and
	// actual state changes are sent into the given sink.
	Run(ctx context.Context, requests RequestService, sink ActualSink) error
	// Actual returns the current actual state of the object.
	Actual() ActualState
}

// ActualState describes the observable state of an object.
type ActualState struct {
	// ID of the object
	ID model.ObjectID `json:"id"`
	// Type of the object
	Type model.ObjectType `json:"type"`
	// Busy is set while a reaction sequence is running.
	// Trigger requests received while busy are dropped.
	Busy bool `json:"busy"`
	// Number of reaction sequences started
	TriggerCount uint64 `json:"trigger_count"`
	// Time of the last started reaction sequence
	LastTriggered time.Time `json:"last_triggered,omitempty"`
	// Current value of the digital output (pulse-output only)
	Output *bool `json:"output,omitempty"`
	// Current angle of the servo in degrees (servo-sweep only)
	Angle *int `json:"angle,omitempty"`
}

// ActualSink receives actual state changes of objects.
type ActualSink interface {
	// PublishActual delivers the given actual state to interested parties.
	PublishActual(ctx context.Context, actual ActualState)
}

// waitFor blocks for the given duration on the given timer channel,
// returning an error only when the context is cancelled first.
func waitFor(ctx context.Context, ch <-chan time.Time) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return maskAny(ctx.Err())
	}
}
