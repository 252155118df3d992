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

package logging

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/posturekit/PostureWorker/service/mqtt"
)

// MQTTWriter is a log output that ships log lines to an MQTT topic,
// so a worker's logs can be followed from a host machine.
// Lines are dropped, oldest first, when the broker cannot keep up.
type MQTTWriter interface {
	io.Writer
	Enable(enable bool)
	SetDestination(topic string, mqttService mqtt.Service)
}

const logQueueSize = 512

// NewMQTTWriter creates a new MQTT output for logs.
// The sender stops when the given context is canceled.
func NewMQTTWriter(ctx context.Context) MQTTWriter {
	w := &mqttWriter{
		queue: make(chan logEntry, logQueueSize),
	}
	go w.run(ctx)
	return w
}

type logEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type mqttWriter struct {
	mutex       sync.Mutex
	queue       chan logEntry
	topic       string
	mqttService mqtt.Service
	enable      bool
}

func (w *mqttWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// The caller may reuse p after we return.
	entry := logEntry{
		Time:    time.Now(),
		Message: strings.TrimRight(string(p), "\n"),
	}
	for attempt := 0; attempt < 10; attempt++ {
		select {
		case w.queue <- entry:
			return len(p), nil
		default:
		}
		// Drop the oldest line to make room.
		select {
		case <-w.queue:
		default:
		}
	}
	// Still full; drop this line.
	return len(p), nil
}

// Enable or disable shipping of log lines.
func (w *mqttWriter) Enable(enable bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.enable = enable
}

// SetDestination sets the topic and service used to ship log lines.
func (w *mqttWriter) SetDestination(topic string, mqttService mqtt.Service) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.topic = topic
	w.mqttService = mqttService
}

func (w *mqttWriter) run(ctx context.Context) {
	for {
		w.mutex.Lock()
		mqttService := w.mqttService
		topic := w.topic
		enabled := w.enable
		w.mutex.Unlock()

		if !enabled || topic == "" || mqttService == nil {
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case entry := <-w.queue:
			mqttService.Publish(ctx, entry, topic, mqtt.QosDefault)
		case <-ctx.Done():
			return
		}
	}
}
