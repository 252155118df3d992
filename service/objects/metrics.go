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
	"github.com/posturekit/PostureWorker/pkg/metrics"
)

const (
	subSystem = "objects"
)

var (
	// Number of created objects
	objectsCreatedTotal = metrics.MustRegisterGauge(subSystem,
		"objects_created_total",
		"Number of created objects")

	// Number of configured objects
	objectsConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"objects_configured_total",
		"Number of configured objects")

	// Number of started reaction sequences per object
	sequencesStartedTotal = metrics.MustRegisterCounterVec(subSystem,
		"sequences_started_total",
		"Number of started reaction sequences",
		"id")

	// Number of trigger requests dropped because a sequence was running
	triggersDroppedTotal = metrics.MustRegisterCounterVec(subSystem,
		"triggers_dropped_total",
		"Number of trigger requests dropped while busy",
		"id")

	// Busy state of objects (0=idle, 1=running a sequence)
	sequenceBusyGauge = metrics.MustRegisterGaugeVec(subSystem,
		"sequence_busy",
		"Set while the object is running its reaction sequence",
		"id")
)
