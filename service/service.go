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

package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/pkg/serial"
	"github.com/posturekit/PostureWorker/service/bridge"
	"github.com/posturekit/PostureWorker/service/mqtt"
	"github.com/posturekit/PostureWorker/service/objects"
	"github.com/posturekit/PostureWorker/service/worker"
)

var maskAny = errors.WithStack

// Service contains the API of the actuator worker service.
type Service interface {
	// Run the worker until the given context is cancelled.
	Run(ctx context.Context) error
	// Actuals returns the actual state of all configured objects.
	Actuals() []objects.ActualState
	// Trigger injects a command as if it was received on the serial
	// channel. Returns false when no worker is running.
	Trigger(command, source string) bool
}

// Config of the service.
type Config struct {
	// Path of the configuration file
	ConfigFile string
	// Prefix for MQTT topics
	TopicPrefix string
}

// Dependencies of the service.
type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
	// PortBuilder opens the serial port for the given configuration.
	PortBuilder func(model.SerialConfig) (serial.Port, error)
	// MQTTService used to publish actual state changes.
	// Nil when MQTT is not configured.
	MQTTService mqtt.Service
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if conf.ConfigFile == "" {
		return nil, errors.Wrap(model.ValidationError, "ConfigFile is empty")
	}
	deps.Log = deps.Log.With().Str("component", "service").Logger()
	if deps.PortBuilder == nil {
		deps.PortBuilder = func(cfg model.SerialConfig) (serial.Port, error) {
			return serial.Open(serial.Config{Device: cfg.Device, Baud: cfg.Baud})
		}
	}
	return &service{
		Config:       conf,
		Dependencies: deps,
	}, nil
}

type service struct {
	Config
	Dependencies

	mutex         sync.Mutex
	currentWorker worker.Service
	workerCancel  func()
}

// Run initializes the worker and then keeps running workers,
// restarting on configuration changes, until the given context is
// cancelled.
func (s *service) Run(ctx context.Context) error {
	log := s.Log
	defer s.Bridge.Close()

	s.Bridge.BlinkGreenLED(time.Millisecond * 250)
	s.Bridge.BlinkRedLED(time.Millisecond * 250)

	configChanges := make(chan model.LocalConfiguration)
	go func() {
		if err := s.runLoadConfig(ctx, log, configChanges); err != nil {
			log.Error().Err(err).Msg("Config loader failed")
		}
	}()

	var workerDone sync.WaitGroup
	for {
		select {
		case conf := <-configChanges:
			log.Debug().Msg("Configuration change received")
			s.stopWorker(&workerDone)
			s.startWorker(ctx, conf, &workerDone)
		case <-ctx.Done():
			s.stopWorker(&workerDone)
			return nil
		}
	}
}

// startWorker launches a worker for the given configuration.
// On failure the worker is restarted with increasing delays, until its
// context is cancelled or a new configuration arrives.
func (s *service) startWorker(ctx context.Context, conf model.LocalConfiguration, workerDone *sync.WaitGroup) {
	log := s.Log
	workerCtx, cancel := context.WithCancel(ctx)

	s.mutex.Lock()
	s.workerCancel = cancel
	s.mutex.Unlock()

	workerDone.Add(1)
	go func() {
		defer workerDone.Done()
		recentErrors := 0
		for {
			w, err := worker.NewService(conf, worker.Dependencies{
				Log:         log,
				Bridge:      s.Bridge,
				PortBuilder: s.PortBuilder,
				MQTTService: s.MQTTService,
				TopicPrefix: s.TopicPrefix,
			})
			if err != nil {
				log.Error().Err(err).Msg("Failed to create worker")
			} else {
				s.mutex.Lock()
				s.currentWorker = w
				s.mutex.Unlock()

				s.Bridge.SetGreenLED(true)
				s.Bridge.SetRedLED(false)
				err = w.Run(workerCtx)

				s.mutex.Lock()
				s.currentWorker = nil
				s.mutex.Unlock()
			}
			if workerCtx.Err() != nil {
				return
			}
			recentErrors++
			delay := time.Duration(recentErrors) * time.Second
			if delay > time.Second*15 {
				delay = time.Second * 15
			}
			s.Bridge.SetGreenLED(false)
			s.Bridge.SetRedLED(true)
			log.Warn().Err(err).Msgf("Worker terminated, restarting in %s", delay)
			select {
			case <-time.After(delay):
				// Retry
			case <-workerCtx.Done():
				return
			}
		}
	}()
}

// stopWorker cancels the current worker (if any) and waits for it to
// terminate.
func (s *service) stopWorker(workerDone *sync.WaitGroup) {
	s.mutex.Lock()
	cancel := s.workerCancel
	s.workerCancel = nil
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	workerDone.Wait()
}

// Actuals returns the actual state of all configured objects.
func (s *service) Actuals() []objects.ActualState {
	s.mutex.Lock()
	w := s.currentWorker
	s.mutex.Unlock()

	if w == nil {
		return nil
	}
	return w.Actuals()
}

// Trigger injects a command as if it was received on the serial channel.
func (s *service) Trigger(command, source string) bool {
	s.mutex.Lock()
	w := s.currentWorker
	s.mutex.Unlock()

	if w == nil {
		return false
	}
	w.Trigger(command, source)
	return true
}
