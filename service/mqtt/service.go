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

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// QosAtMostOnce represents "QoS 0: At most once delivery".
	QosAtMostOnce = byte(0)
	// QosAsLeastOnce represents "QoS 1: At least once delivery".
	QosAsLeastOnce = byte(1)
	// QosExactlyOnce represents "QoS 2: Exactly once delivery".
	QosExactlyOnce = byte(2)

	// QosDefault is the quality of service used when callers have no
	// specific requirement.
	QosDefault = QosAtMostOnce
)

var maskAny = errors.WithStack

// Config of the MQTT service.
type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	ClientID string
}

// Service contains the API exposed by the MQTT service.
type Service interface {
	// Close the service
	Close() error
	// Publish a JSON encoded message into a topic.
	Publish(ctx context.Context, msg interface{}, topic string, qos byte) error
	// Subscribe to a topic
	Subscribe(ctx context.Context, topic string, qos byte) (Subscription, error)
}

// Subscription for a single topic
type Subscription interface {
	// Unsubscribe.
	Close() error
	// NextMsg blocks until the next message has been received.
	NextMsg(ctx context.Context, result interface{}) error
}

// NewService instantiates a new MQTT service.
func NewService(config Config, log zerolog.Logger) (Service, error) {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", addr)).
		SetClientID(config.ClientID).
		SetUsername(config.UserName).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Error().Err(err).Msg("MQTT connection lost")
		})
	return &service{
		Config: config,
		log:    log.With().Str("component", "mqtt").Logger(),
		client: paho.NewClient(opts),
	}, nil
}

type service struct {
	Config
	mutex     sync.Mutex
	log       zerolog.Logger
	client    paho.Client
	connected bool
}

// Close the service
func (s *service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		s.client.Disconnect(250)
		s.connected = false
	}
	return nil
}

// connect opens a connection.
func (s *service) connect(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		return nil
	}
	token := s.client.Connect()
	if err := waitToken(ctx, token); err != nil {
		return maskAny(err)
	}
	s.connected = true
	return nil
}

// Publish a JSON encoded message into a topic.
func (s *service) Publish(ctx context.Context, msg interface{}, topic string, qos byte) error {
	if err := s.connect(ctx); err != nil {
		return maskAny(err)
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return maskAny(err)
	}
	token := s.client.Publish(topic, qos, false, encoded)
	if err := waitToken(ctx, token); err != nil {
		return maskAny(err)
	}
	return nil
}

// Subscribe to a topic
func (s *service) Subscribe(ctx context.Context, topic string, qos byte) (Subscription, error) {
	if err := s.connect(ctx); err != nil {
		return nil, maskAny(err)
	}
	sub := &subscription{
		service:  s,
		topic:    topic,
		messages: make(chan []byte, 32),
	}
	token := s.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		select {
		case sub.messages <- msg.Payload():
			// Delivered
		default:
			s.log.Warn().Str("topic", topic).Msg("subscription buffer full, message dropped")
		}
	})
	if err := waitToken(ctx, token); err != nil {
		return nil, maskAny(err)
	}
	return sub, nil
}

type subscription struct {
	service  *service
	topic    string
	messages chan []byte
}

// Unsubscribe.
func (s *subscription) Close() error {
	token := s.service.client.Unsubscribe(s.topic)
	token.WaitTimeout(time.Second)
	return nil
}

// NextMsg blocks until the next message has been received.
func (s *subscription) NextMsg(ctx context.Context, result interface{}) error {
	select {
	case payload := <-s.messages:
		if err := json.Unmarshal(payload, result); err != nil {
			return maskAny(err)
		}
		return nil
	case <-ctx.Done():
		return maskAny(ctx.Err())
	}
}

// waitToken waits for the given token to complete, honoring the
// given context.
func waitToken(ctx context.Context, token paho.Token) error {
	done := token.Done()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
