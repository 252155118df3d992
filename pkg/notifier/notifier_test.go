package notifier

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/pkg/monitor"
	"github.com/posturekit/PostureWorker/pkg/posture"
)

func TestTriggerBytes(t *testing.T) {
	tests := []struct {
		profile  Profile
		expected string
	}{
		{ProfilePulse, "1"},
		{ProfileSweep, "BP"},
		{ProfileSweepLine, "BP/n"},
	}
	for _, tc := range tests {
		t.Run(string(tc.profile), func(t *testing.T) {
			b, err := tc.profile.TriggerBytes()
			require.NoError(t, err)
			require.Equal(t, tc.expected, string(b))
		})
	}
}

func TestTriggerBytesUnknownProfile(t *testing.T) {
	_, err := Profile("buzzer").TriggerBytes()
	require.Error(t, err)
}

func TestNotifyOnSlouch(t *testing.T) {
	var port bytes.Buffer
	n, err := NewNotifier(Config{Profile: ProfileSweep}, Dependencies{
		Log:  zerolog.Nop(),
		Port: &port,
	})
	require.NoError(t, err)

	n.Notify(monitor.StatusChange{Status: posture.StatusSlouch, Time: time.Now()})
	require.Equal(t, "BP", port.String())

	// A second slouch transition fires again.
	n.Notify(monitor.StatusChange{Status: posture.StatusSlouch, Time: time.Now()})
	require.Equal(t, "BPBP", port.String())
}

func TestNotifyIgnoresGoodPosture(t *testing.T) {
	var port bytes.Buffer
	n, err := NewNotifier(Config{Profile: ProfilePulse}, Dependencies{
		Log:  zerolog.Nop(),
		Port: &port,
	})
	require.NoError(t, err)

	n.Notify(monitor.StatusChange{Status: posture.StatusGood, Time: time.Now()})
	require.Equal(t, 0, port.Len())
}

func TestNewNotifierValidation(t *testing.T) {
	var port bytes.Buffer
	_, err := NewNotifier(Config{Profile: "bogus"}, Dependencies{Log: zerolog.Nop(), Port: &port})
	require.Error(t, err)

	_, err = NewNotifier(Config{Profile: ProfilePulse}, Dependencies{Log: zerolog.Nop()})
	require.Error(t, err)
}
