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
	"math"
)

// Status describes the posture of a monitored user.
type Status string

const (
	// StatusGood indicates the user is sitting upright.
	StatusGood Status = "Good Posture"
	// StatusSlouch indicates the user is slouching.
	StatusSlouch Status = "Slouch Detected"
)

// IsGood returns true when the status indicates good posture.
func (s Status) IsGood() bool {
	return s == StatusGood
}

// Point is a 2D body landmark in normalized image coordinates.
// Y grows downwards, so a point above another has a smaller Y.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks holds the left-side body landmarks used for
// posture classification.
type Landmarks struct {
	Knee     Point `json:"knee"`
	Hip      Point `json:"hip"`
	Shoulder Point `json:"shoulder"`
	Ear      Point `json:"ear"`
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// FindAngle returns the angle (in degrees) at b between the vectors
// b->a and b->c. Degenerate (zero length) vectors yield angle 0.
func FindAngle(a, b, c Point) float64 {
	distBA := Distance(a, b)
	distBC := Distance(c, b)
	if distBA == 0 || distBC == 0 {
		return 0
	}
	dot := (a.X-b.X)*(c.X-b.X) + (a.Y-b.Y)*(c.Y-b.Y)
	cos := dot / (distBA * distBC)
	// Clamp against rounding before acos.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Classification thresholds. Posture is good when the knee-hip-shoulder
// angle is roughly a right angle and both the torso and the neck are
// close to straight.
const (
	minKneeHipShoulderAngle = 75
	maxKneeHipShoulderAngle = 105
	minHipShoulderEarAngle  = 165
	minShoulderEarAngle     = 165

	// virtualPointOffset is subtracted from the ear Y coordinate to
	// construct a reference point straight above the ear.
	virtualPointOffset = 0.1
)

// Classify derives a posture status from the given landmarks.
func Classify(lm Landmarks) Status {
	virtualPoint := Point{X: lm.Ear.X, Y: lm.Ear.Y - virtualPointOffset}

	angleKHS := FindAngle(lm.Knee, lm.Hip, lm.Shoulder)
	angleHSE := FindAngle(lm.Hip, lm.Shoulder, lm.Ear)
	angleSEV := FindAngle(lm.Shoulder, lm.Ear, virtualPoint)

	validKHS := angleKHS >= minKneeHipShoulderAngle && angleKHS <= maxKneeHipShoulderAngle
	validHSE := angleHSE >= minHipShoulderEarAngle
	validSEV := angleSEV >= minShoulderEarAngle

	if validKHS && validHSE && validSEV {
		return StatusGood
	}
	return StatusSlouch
}
