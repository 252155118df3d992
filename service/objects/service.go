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
	"sort"

	"github.com/benbjohnson/clock"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/devices"
)

// Service contains the API that is exposed by the object service.
type Service interface {
	// ObjectByID returns the object with given ID.
	// Return false if not found
	ObjectByID(id model.ObjectID) (Object, bool)
	// Actuals returns the actual state of all configured objects,
	// sorted by object ID.
	Actuals() []ActualState
	// Configure is called once to put all objects in the desired state.
	Configure(ctx context.Context) error
	// Run all objects until the given context is cancelled.
	Run(ctx context.Context, requests RequestService, sink ActualSink) error
}

type service struct {
	objects           map[model.ObjectID]Object
	configuredObjects map[model.ObjectID]Object
	log               zerolog.Logger
}

// NewService instantiates a new Service and Object's for the given
// object configurations.
func NewService(configs []model.Object, devService devices.Service, clk clock.Clock, log zerolog.Logger) (Service, error) {
	s := &service{
		objects:           make(map[model.ObjectID]Object),
		configuredObjects: make(map[model.ObjectID]Object),
		log:               log.With().Str("component", "object-service").Logger(),
	}
	for _, c := range configs {
		var obj Object
		var err error
		objLog := log.With().
			Str("object", string(c.ID)).
			Str("type", string(c.Type)).
			Logger()
		objLog.Debug().Msg("creating object...")
		switch c.Type {
		case model.ObjectTypePulseOutput:
			obj, err = newPulseOutput(c, objLog, devService, clk)
		case model.ObjectTypeServoSweep:
			obj, err = newServoSweep(c, objLog, devService, clk)
		default:
			err = errors.Wrapf(model.ValidationError, "Unsupported object type '%s'", c.Type)
		}
		if err != nil {
			objLog.Error().Err(err).Msg("Failed to create object")
		} else {
			s.objects[c.ID] = obj
		}
	}
	s.log.Debug().Msgf("created %d objects", len(s.objects))
	objectsCreatedTotal.Set(float64(len(s.objects)))
	return s, nil
}

// ObjectByID returns the object with given ID.
// Return false if not found or not configured.
func (s *service) ObjectByID(id model.ObjectID) (Object, bool) {
	obj, ok := s.configuredObjects[id]
	return obj, ok
}

// Actuals returns the actual state of all configured objects.
func (s *service) Actuals() []ActualState {
	result := make([]ActualState, 0, len(s.configuredObjects))
	for _, obj := range s.configuredObjects {
		result = append(result, obj.Actual())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Configure is called once to put all objects in the desired state.
func (s *service) Configure(ctx context.Context) error {
	var ae aerr.AggregateError
	configuredObjects := make(map[model.ObjectID]Object)
	for id, obj := range s.objects {
		if err := obj.Configure(ctx); err != nil {
			s.log.Error().Err(err).Str("object", string(id)).Msg("Failed to configure object")
			ae.Add(maskAny(err))
		} else {
			s.log.Debug().Str("object", string(id)).Msg("configured object")
			configuredObjects[id] = obj
		}
	}
	s.configuredObjects = configuredObjects
	objectsConfiguredTotal.Set(float64(len(configuredObjects)))
	return ae.AsError()
}

// Run all objects until the given context is cancelled.
func (s *service) Run(ctx context.Context, requests RequestService, sink ActualSink) error {
	if len(s.configuredObjects) == 0 {
		s.log.Warn().Msg("no configured objects, just waiting for context to be cancelled")
		<-ctx.Done()
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, obj := range s.configuredObjects {
		obj := obj
		g.Go(func() error {
			if err := obj.Run(ctx, requests, sink); err != nil {
				return maskAny(err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return maskAny(err)
	}
	return nil
}
