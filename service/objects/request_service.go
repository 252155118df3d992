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

	"github.com/mattn/go-pubsub"
	"github.com/rs/zerolog"
)

// TriggerRequest is a single command received on one of the worker
// inputs. The command is delivered to all objects; each object reacts
// only to an exact match of its own trigger.
type TriggerRequest struct {
	// Command exactly as extracted by the framer
	Command string `json:"command"`
	// Source of the command (e.g. "serial", "http")
	Source string `json:"source"`
	// Time the command was received
	Time time.Time `json:"time"`
}

// RequestService is used by objects to receive trigger requests from
// the worker inputs.
type RequestService interface {
	// Publish delivers the given request to all registered receivers.
	Publish(req TriggerRequest)
	// RegisterTriggerReceiver registers a callback for all requests.
	// The returned function cancels the registration.
	RegisterTriggerReceiver(cb func(TriggerRequest)) context.CancelFunc
}

// NewRequestService creates a new RequestService.
func NewRequestService(log zerolog.Logger) RequestService {
	return &requestService{
		log:             log.With().Str("component", "request-service").Logger(),
		triggerRequests: pubsub.New(),
	}
}

type requestService struct {
	log             zerolog.Logger
	triggerRequests *pubsub.PubSub
}

// Publish delivers the given request to all registered receivers.
func (s *requestService) Publish(req TriggerRequest) {
	s.triggerRequests.Pub(req)
}

// RegisterTriggerReceiver registers a callback for all requests.
func (s *requestService) RegisterTriggerReceiver(cb func(TriggerRequest)) context.CancelFunc {
	wcb := func(x TriggerRequest) {
		cb(x)
	}
	s.triggerRequests.Sub(wcb)
	return func() {
		s.triggerRequests.Leave(wcb)
	}
}
