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
	"math/rand"
	"sync"
)

// Source produces posture samples for the monitor.
type Source interface {
	// Sample returns the current posture status.
	Sample(ctx context.Context) (Status, error)
}

// SourceFunc is an adapter allowing a function to serve as a Source.
type SourceFunc func(ctx context.Context) (Status, error)

// Sample returns the current posture status.
func (f SourceFunc) Sample(ctx context.Context) (Status, error) {
	return f(ctx)
}

// NewSimulatedSource creates a Source that yields a random posture
// status on every sample, for running without a detector.
func NewSimulatedSource(seed int64) Source {
	return &simulatedSource{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

type simulatedSource struct {
	mutex sync.Mutex
	rnd   *rand.Rand
}

// Sample returns the current posture status.
func (s *simulatedSource) Sample(ctx context.Context) (Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.rnd.Intn(2) == 0 {
		return StatusGood, nil
	}
	return StatusSlouch, nil
}
