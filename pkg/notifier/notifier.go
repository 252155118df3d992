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

package notifier

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/pkg/monitor"
)

var maskAny = errors.WithStack

// Profile identifies the trigger convention of the connected actuator
// worker.
type Profile string

const (
	// ProfilePulse triggers a pulse-output object reading single
	// bytes.
	ProfilePulse Profile = "pulse"
	// ProfileSweep triggers a servo-sweep object reading whole
	// packets.
	ProfileSweep Profile = "sweep"
	// ProfileSweepLine triggers a servo-sweep object reading
	// delimited lines.
	ProfileSweepLine Profile = "sweep-line"
)

// TriggerBytes returns the bytes to write on the serial port to fire
// the profile's trigger.
func (p Profile) TriggerBytes() ([]byte, error) {
	switch p {
	case ProfilePulse:
		return []byte("1"), nil
	case ProfileSweep:
		return []byte("BP"), nil
	case ProfileSweepLine:
		return []byte("BP/n"), nil
	}
	return nil, maskAny(errors.Errorf("unknown profile '%s'", p))
}

// Config of the notifier.
type Config struct {
	Profile Profile
}

// Dependencies of the notifier.
type Dependencies struct {
	Log zerolog.Logger
	// Port is the serial port connected to the actuator worker.
	Port io.Writer
}

// Notifier fires an actuator trigger whenever the posture status
// changes to slouch.
type Notifier struct {
	config  Config
	deps    Dependencies
	trigger []byte
}

// NewNotifier instantiates a notifier for the given profile.
func NewNotifier(config Config, deps Dependencies) (*Notifier, error) {
	trigger, err := config.Profile.TriggerBytes()
	if err != nil {
		return nil, maskAny(err)
	}
	if deps.Port == nil {
		return nil, maskAny(errors.New("Port is nil"))
	}
	deps.Log = deps.Log.With().Str("component", "notifier").Logger()
	return &Notifier{
		config:  config,
		deps:    deps,
		trigger: trigger,
	}, nil
}

// Notify handles a posture status change. Register it as a monitor
// status receiver.
func (n *Notifier) Notify(change monitor.StatusChange) {
	if change.Status.IsGood() {
		return
	}
	log := n.deps.Log
	if _, err := n.deps.Port.Write(n.trigger); err != nil {
		log.Error().Err(err).Msg("Failed to write trigger to serial port")
		return
	}
	log.Debug().
		Str("profile", string(n.config.Profile)).
		Msg("Actuator triggered")
	triggersSentTotal.WithLabelValues(string(n.config.Profile)).Inc()
}
