package posture

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// uprightLandmarks returns a seated, upright pose: right angle at the
// hip, shoulder and ear vertically stacked above the hip.
func uprightLandmarks() Landmarks {
	return Landmarks{
		Knee:     Point{X: 0.5, Y: 0.8},
		Hip:      Point{X: 0.3, Y: 0.8},
		Shoulder: Point{X: 0.3, Y: 0.5},
		Ear:      Point{X: 0.3, Y: 0.35},
	}
}

func TestFindAngle(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  Point
		expected float64
	}{
		{"right angle", Point{1, 0}, Point{0, 0}, Point{0, 1}, 90},
		{"straight line", Point{-1, 0}, Point{0, 0}, Point{1, 0}, 180},
		{"collinear same side", Point{1, 0}, Point{0, 0}, Point{2, 0}, 0},
		{"45 degrees", Point{1, 0}, Point{0, 0}, Point{1, 1}, 45},
		{"degenerate first vector", Point{0, 0}, Point{0, 0}, Point{1, 0}, 0},
		{"degenerate second vector", Point{1, 0}, Point{0, 0}, Point{0, 0}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			angle := FindAngle(tc.a, tc.b, tc.c)
			require.InDelta(t, tc.expected, angle, 0.01)
		})
	}
}

func TestDistance(t *testing.T) {
	require.InDelta(t, 5.0, Distance(Point{0, 0}, Point{3, 4}), 1e-9)
	require.Equal(t, 0.0, Distance(Point{1, 2}, Point{1, 2}))
}

func TestClassifyUpright(t *testing.T) {
	require.Equal(t, StatusGood, Classify(uprightLandmarks()))
}

func TestClassifySlouchedTorso(t *testing.T) {
	// Shoulder leaning far forward breaks the hip-shoulder-ear line.
	lm := uprightLandmarks()
	lm.Shoulder.X = 0.45
	lm.Ear = Point{X: 0.3, Y: 0.35}
	require.Equal(t, StatusSlouch, Classify(lm))
}

func TestClassifyForwardHead(t *testing.T) {
	// Ear pushed forward relative to the shoulder drops the
	// shoulder-ear-vertical angle below the threshold.
	lm := uprightLandmarks()
	lm.Ear = Point{X: 0.45, Y: 0.4}
	require.Equal(t, StatusSlouch, Classify(lm))
}

func TestClassifyLegsStretched(t *testing.T) {
	// Knee nearly in line with hip and shoulder opens the
	// knee-hip-shoulder angle far past a right angle.
	lm := uprightLandmarks()
	lm.Knee = Point{X: 0.3, Y: 0.99}
	require.Equal(t, StatusSlouch, Classify(lm))
}

func TestClassifyDegenerateLandmarks(t *testing.T) {
	// All landmarks on the same point yield zero angles, which can
	// never satisfy the thresholds.
	lm := Landmarks{}
	require.Equal(t, StatusSlouch, Classify(lm))
}

func TestClassifyAngleBounds(t *testing.T) {
	// Knee placed so the knee-hip-shoulder angle is exactly 90
	// degrees stays within [75,105].
	lm := uprightLandmarks()
	angle := FindAngle(lm.Knee, lm.Hip, lm.Shoulder)
	require.InDelta(t, 90, angle, 0.01)
	require.True(t, math.Abs(angle-90) < 1)
}

func TestSimulatedSourceDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewSimulatedSource(42)
	b := NewSimulatedSource(42)
	for i := 0; i < 32; i++ {
		sa, err := a.Sample(ctx)
		require.NoError(t, err)
		sb, err := b.Sample(ctx)
		require.NoError(t, err)
		require.Equal(t, sa, sb)
	}
}

func TestSimulatedSourceYieldsBothStatuses(t *testing.T) {
	ctx := context.Background()
	src := NewSimulatedSource(1)
	seen := make(map[Status]bool)
	for i := 0; i < 64; i++ {
		s, err := src.Sample(ctx)
		require.NoError(t, err)
		seen[s] = true
	}
	require.True(t, seen[StatusGood])
	require.True(t, seen[StatusSlouch])
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) (Status, error) {
		return StatusSlouch, nil
	})
	s, err := src.Sample(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSlouch, s)
}
