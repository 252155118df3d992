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

package posture

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/posturekit/PostureWorker/service/mqtt"
)

// LandmarkSource classifies landmark frames received over MQTT.
// An external pose detector publishes Landmarks messages on a topic;
// the source keeps the status of the last received frame.
type LandmarkSource struct {
	mutex       sync.Mutex
	log         zerolog.Logger
	mqttService mqtt.Service
	topic       string
	status      Status
}

// NewLandmarkSource creates a LandmarkSource consuming frames from the
// given topic.
func NewLandmarkSource(mqttService mqtt.Service, topic string, log zerolog.Logger) *LandmarkSource {
	return &LandmarkSource{
		log:         log.With().Str("component", "landmark-source").Logger(),
		mqttService: mqttService,
		topic:       topic,
		// Without any detection the original treats the user as
		// sitting upright.
		status: StatusGood,
	}
}

// Run subscribes to the landmark topic and consumes frames until the
// given context is canceled.
func (s *LandmarkSource) Run(ctx context.Context) error {
	sub, err := s.mqttService.Subscribe(ctx, s.topic, mqtt.QosDefault)
	if err != nil {
		return err
	}
	defer sub.Close()
	for {
		var lm Landmarks
		if err := sub.NextMsg(ctx, &lm); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("Failed to decode landmark frame")
			continue
		}
		status := Classify(lm)
		s.mutex.Lock()
		s.status = status
		s.mutex.Unlock()
	}
}

// Sample returns the status of the last received landmark frame.
func (s *LandmarkSource) Sample(ctx context.Context) (Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status, nil
}
