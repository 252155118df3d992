package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/model"
)

func TestServoPulseNs(t *testing.T) {
	tests := []struct {
		degrees  int
		expected int
	}{
		{0, servoMinPulseNs},
		{90, (servoMinPulseNs + servoMaxPulseNs) / 2},
		{180, servoMaxPulseNs},
		// Out of range angles clamp to the end stops.
		{-45, servoMinPulseNs},
		{200, servoMaxPulseNs},
	}
	for _, tc := range tests {
		require.Equal(t, tc.expected, servoPulseNs(tc.degrees), "degrees=%d", tc.degrees)
	}
}

func TestRpiPWMChannels(t *testing.T) {
	// Only the hardware PWM capable header pins are mapped.
	require.Len(t, rpiPWMChannels, 4)
	for _, pin := range []model.Pin{12, 18, 13, 19} {
		_, found := rpiPWMChannels[pin]
		require.True(t, found, "pin %d", pin)
	}
	_, found := rpiPWMChannels[model.Pin(17)]
	require.False(t, found)
}
