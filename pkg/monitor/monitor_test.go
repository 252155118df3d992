package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/pkg/posture"
)

// scriptedSource yields a fixed sequence of statuses, repeating the
// last one when the script runs out.
type scriptedSource struct {
	mutex    sync.Mutex
	statuses []posture.Status
	index    int
}

func (s *scriptedSource) Sample(ctx context.Context) (posture.Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	status := s.statuses[s.index]
	if s.index < len(s.statuses)-1 {
		s.index++
	}
	return status, nil
}

// changeRecorder collects published status changes.
type changeRecorder struct {
	mutex   sync.Mutex
	changes []StatusChange
}

func (r *changeRecorder) record(change StatusChange) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.changes = append(r.changes, change)
}

func (r *changeRecorder) statuses() []posture.Status {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	result := make([]posture.Status, 0, len(r.changes))
	for _, c := range r.changes {
		result = append(result, c.Status)
	}
	return result
}

type harness struct {
	service  Service
	clock    *clock.Mock
	recorder *changeRecorder
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, statuses ...posture.Status) *harness {
	clk := clock.NewMock()
	svc, err := NewService(Config{}, Dependencies{
		Log:    zerolog.Nop(),
		Source: &scriptedSource{statuses: statuses},
		Clock:  clk,
	})
	require.NoError(t, err)
	recorder := &changeRecorder{}
	svc.RegisterStatusReceiver(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	t.Cleanup(cancel)
	// Give the run loop time to install its ticker.
	time.Sleep(time.Millisecond * 20)
	return &harness{service: svc, clock: clk, recorder: recorder, cancel: cancel}
}

// tick advances the mock clock by one poll interval.
func (h *harness) tick() {
	h.clock.Add(DefaultInterval)
	time.Sleep(time.Millisecond * 20)
}

func TestMonitorFirstSampleIsChange(t *testing.T) {
	h := newHarness(t, posture.StatusGood)

	_, ok := h.service.CurrentStatus()
	require.False(t, ok)

	h.tick()
	require.Eventually(t, func() bool {
		return len(h.recorder.statuses()) == 1
	}, time.Second, time.Millisecond*10)
	require.Equal(t, []posture.Status{posture.StatusGood}, h.recorder.statuses())

	status, ok := h.service.CurrentStatus()
	require.True(t, ok)
	require.Equal(t, posture.StatusGood, status)
}

func TestMonitorDetectsChangesOnly(t *testing.T) {
	h := newHarness(t,
		posture.StatusGood,
		posture.StatusGood,
		posture.StatusSlouch,
		posture.StatusSlouch,
		posture.StatusGood)

	for i := 0; i < 5; i++ {
		h.tick()
	}
	require.Eventually(t, func() bool {
		return len(h.recorder.statuses()) == 3
	}, time.Second, time.Millisecond*10)
	require.Equal(t, []posture.Status{
		posture.StatusGood,
		posture.StatusSlouch,
		posture.StatusGood,
	}, h.recorder.statuses())
}

func TestMonitorReceiverCancel(t *testing.T) {
	h := newHarness(t, posture.StatusGood, posture.StatusSlouch)

	extra := &changeRecorder{}
	cancel := h.service.RegisterStatusReceiver(extra.record)
	h.tick()
	require.Eventually(t, func() bool {
		return len(extra.statuses()) == 1
	}, time.Second, time.Millisecond*10)

	cancel()
	h.tick()
	require.Eventually(t, func() bool {
		return len(h.recorder.statuses()) == 2
	}, time.Second, time.Millisecond*10)
	require.Len(t, extra.statuses(), 1)
}

func TestMonitorChangeTimeFromClock(t *testing.T) {
	h := newHarness(t, posture.StatusSlouch)
	h.tick()
	require.Eventually(t, func() bool {
		return len(h.recorder.statuses()) == 1
	}, time.Second, time.Millisecond*10)

	h.recorder.mutex.Lock()
	changeTime := h.recorder.changes[0].Time
	h.recorder.mutex.Unlock()
	require.Equal(t, h.clock.Now(), changeTime)
}

func TestMonitorRequiresSource(t *testing.T) {
	_, err := NewService(Config{}, Dependencies{Log: zerolog.Nop()})
	require.Error(t, err)
}
