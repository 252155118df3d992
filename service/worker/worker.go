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

package worker

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/pkg/serial"
	"github.com/posturekit/PostureWorker/service/bridge"
	"github.com/posturekit/PostureWorker/service/devices"
	"github.com/posturekit/PostureWorker/service/mqtt"
	"github.com/posturekit/PostureWorker/service/objects"
)

var maskAny = errors.WithStack

// Service contains the API exposed by the worker service.
type Service interface {
	// Run the worker service until the given context is cancelled.
	Run(ctx context.Context) error
	// Actuals returns the actual state of all configured objects.
	Actuals() []objects.ActualState
	// Trigger injects a command as if it was received on the serial
	// channel.
	Trigger(command, source string)
}

// Dependencies of the worker service.
type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
	// PortBuilder opens the serial port for the given configuration.
	PortBuilder func(model.SerialConfig) (serial.Port, error)
	// MQTTService used to publish actual state changes.
	// Nil when MQTT is not configured.
	MQTTService mqtt.Service
	// TopicPrefix for actual state messages
	TopicPrefix string
	// Clock used by reaction sequences. Nil means wall clock.
	Clock clock.Clock
}

// NewService instantiates a new Service.
func NewService(config model.LocalConfiguration, deps Dependencies) (Service, error) {
	if err := config.Validate(); err != nil {
		return nil, maskAny(err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	deps.Log = deps.Log.With().Str("component", "worker").Logger()
	return &service{
		config:       config,
		Dependencies: deps,
		requests:     objects.NewRequestService(deps.Log),
	}, nil
}

type service struct {
	config model.LocalConfiguration
	Dependencies
	requests objects.RequestService

	mutex      sync.Mutex
	objService objects.Service
}

// Run the worker service until the given context is cancelled.
func (s *service) Run(ctx context.Context) error {
	// Build services
	devService, err := devices.NewService(s.config.Devices, s.Bridge)
	if err != nil {
		return maskAny(err)
	}
	objService, err := objects.NewService(s.config.Objects, devService, s.Clock, s.Log)
	if err != nil {
		return maskAny(err)
	}
	s.mutex.Lock()
	s.objService = objService
	s.mutex.Unlock()

	defer func() {
		devService.Close(context.Background())
	}()

	// Configure devices
	if err := devService.Configure(ctx); err != nil {
		s.Log.Error().Err(err).Msg("Not all devices are configured")
	}
	// Configure objects
	if err := objService.Configure(ctx); err != nil {
		s.Log.Error().Err(err).Msg("Not all objects are configured")
	}

	sink := &actualSink{
		log:         s.Log,
		mqttService: s.MQTTService,
		topicPrefix: s.TopicPrefix,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return objService.Run(ctx, s.requests, sink) })
	g.Go(func() error { return s.runSerial(ctx) })
	if err := g.Wait(); err != nil {
		return maskAny(err)
	}
	return nil
}

// runSerial reads commands from the serial channel and publishes them
// to all objects, until the given context is cancelled.
func (s *service) runSerial(ctx context.Context) error {
	log := s.Log.With().
		Str("device", s.config.Serial.Device).
		Int("baud", s.config.Serial.Baud).
		Str("framing", string(s.config.Serial.Framing)).
		Logger()
	port, err := s.PortBuilder(s.config.Serial)
	if err != nil {
		return maskAny(err)
	}
	defer port.Close()
	framer, err := serial.NewFramer(s.config.Serial, port)
	if err != nil {
		return maskAny(err)
	}
	log.Info().Msg("listening for serial commands")

	// Close the port when the context is cancelled, unblocking Next.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	for {
		command, err := framer.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return maskAny(err)
		}
		log.Debug().Str("command", command).Msg("serial command received")
		s.Trigger(command, "serial")
	}
}

// Actuals returns the actual state of all configured objects.
func (s *service) Actuals() []objects.ActualState {
	s.mutex.Lock()
	objService := s.objService
	s.mutex.Unlock()

	if objService == nil {
		return nil
	}
	return objService.Actuals()
}

// Trigger injects a command as if it was received on the serial channel.
func (s *service) Trigger(command, source string) {
	commandsReceivedTotal.WithLabelValues(source).Inc()
	s.requests.Publish(objects.TriggerRequest{
		Command: command,
		Source:  source,
		Time:    time.Now(),
	})
}

// actualSink publishes actual state changes over MQTT (when configured).
type actualSink struct {
	log         zerolog.Logger
	mqttService mqtt.Service
	topicPrefix string
}

// PublishActual delivers the given actual state to interested parties.
func (s *actualSink) PublishActual(ctx context.Context, actual objects.ActualState) {
	if s.mqttService == nil {
		return
	}
	topic := path.Join(s.topicPrefix, "actual", string(actual.ID))
	lctx, cancel := context.WithTimeout(ctx, time.Millisecond*250)
	defer cancel()
	if err := s.mqttService.Publish(lctx, actual, topic, mqtt.QosDefault); err != nil {
		s.log.Debug().Err(err).Str("topic", topic).Msg("Publish failed")
	}
}
