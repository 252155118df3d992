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

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/pkg/posture"
)

var maskAny = errors.WithStack

// DefaultInterval is the time between posture samples.
const DefaultInterval = time.Second * 2

// StatusChange is published to registered receivers whenever the
// posture status differs from the previous sample.
type StatusChange struct {
	Status posture.Status `json:"status"`
	Time   time.Time      `json:"time"`
}

// Service polls a posture source and fans out status changes.
type Service interface {
	// Run polls the source until the given context is canceled.
	Run(ctx context.Context) error
	// CurrentStatus returns the status of the last sample, if any.
	CurrentStatus() (posture.Status, bool)
	// RegisterStatusReceiver registers the given callback to be
	// invoked on every status change.
	RegisterStatusReceiver(cb func(StatusChange)) context.CancelFunc
}

// Config of the monitor service.
type Config struct {
	// Interval between samples. Defaults to DefaultInterval.
	Interval time.Duration
}

// Dependencies of the monitor service.
type Dependencies struct {
	Log    zerolog.Logger
	Source posture.Source
	// Clock used for the poll ticker. Defaults to the wall clock.
	Clock clock.Clock
}

// NewService instantiates a monitor service.
func NewService(config Config, deps Dependencies) (Service, error) {
	if deps.Source == nil {
		return nil, maskAny(errors.New("Source is nil"))
	}
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	deps.Log = deps.Log.With().Str("component", "monitor").Logger()
	return &service{
		config:  config,
		deps:    deps,
		changes: pubsub.New(),
	}, nil
}

type service struct {
	config Config
	deps   Dependencies

	mutex      sync.Mutex
	lastStatus posture.Status
	hasStatus  bool
	changes    *pubsub.PubSub
}

// Run polls the source until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.deps.Log
	ticker := s.deps.Clock.Ticker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sample(ctx)
		case <-ctx.Done():
			log.Debug().Msg("Monitor closed")
			return nil
		}
	}
}

// sample takes a single posture sample and publishes a change when the
// status differs from the previous one.
func (s *service) sample(ctx context.Context) {
	log := s.deps.Log
	status, err := s.deps.Source.Sample(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to sample posture source")
		return
	}
	s.mutex.Lock()
	changed := !s.hasStatus || status != s.lastStatus
	s.lastStatus = status
	s.hasStatus = true
	s.mutex.Unlock()

	if !changed {
		return
	}
	change := StatusChange{
		Status: status,
		Time:   s.deps.Clock.Now(),
	}
	log.Info().Str("status", string(status)).Msg("Posture status changed")
	statusChangesTotal.WithLabelValues(string(status)).Inc()
	s.changes.Pub(change)
}

// CurrentStatus returns the status of the last sample, if any.
func (s *service) CurrentStatus() (posture.Status, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastStatus, s.hasStatus
}

// RegisterStatusReceiver registers the given callback to be invoked on
// every status change.
func (s *service) RegisterStatusReceiver(cb func(StatusChange)) context.CancelFunc {
	psCb := func(change StatusChange) {
		cb(change)
	}
	s.changes.Sub(psCb)
	return func() {
		s.changes.Leave(psCb)
	}
}
