package objects

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/service/bridge"
	"github.com/posturekit/PostureWorker/service/devices"
)

const (
	testTimeout = 5 * time.Second
	testTick    = time.Millisecond
)

type actualRecorder struct {
	mutex   sync.Mutex
	actuals []ActualState
}

func (r *actualRecorder) PublishActual(ctx context.Context, actual ActualState) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.actuals = append(r.actuals, actual)
}

func (r *actualRecorder) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.actuals)
}

type harness struct {
	bridge   *bridge.VirtualBridge
	service  Service
	requests RequestService
	sink     *actualRecorder
	clock    *clock.Mock
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, hwDevices []model.HWDevice, objectConfigs []model.Object) *harness {
	t.Helper()
	log := zerolog.Nop()
	br := bridge.NewVirtualBridge(log)
	devService, err := devices.NewService(hwDevices, br)
	require.NoError(t, err)
	require.NoError(t, devService.Configure(context.Background()))

	clk := clock.NewMock()
	objService, err := NewService(objectConfigs, devService, clk, log)
	require.NoError(t, err)
	require.NoError(t, objService.Configure(context.Background()))

	requests := NewRequestService(log)
	sink := &actualRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = objService.Run(ctx, requests, sink)
	}()
	t.Cleanup(cancel)

	return &harness{
		bridge:   br,
		service:  objService,
		requests: requests,
		sink:     sink,
		clock:    clk,
		cancel:   cancel,
	}
}

func (h *harness) trigger(command string) {
	h.requests.Publish(TriggerRequest{Command: command, Source: "test", Time: time.Now()})
}

// advance moves the mock clock forward after giving the sequence
// goroutine time to reach its wait.
func (h *harness) advance(d time.Duration) {
	time.Sleep(20 * time.Millisecond)
	h.clock.Add(d)
}

func pulseConfig(trigger string, durationMs string) (model.HWDevice, model.Object) {
	dev := model.HWDevice{ID: "led", Type: model.HWDeviceTypeGPIO, Pin: 13}
	obj := model.Object{
		ID:      "pulse",
		Type:    model.ObjectTypePulseOutput,
		Trigger: trigger,
		Connections: map[model.ConnectionName]model.Connection{
			model.ConnectionNameOutput: {
				DeviceID: "led",
				Config:   map[string]string{"duration": durationMs},
			},
		},
	}
	return dev, obj
}

func TestPulseOutputSequence(t *testing.T) {
	dev, obj := pulseConfig("1", "1000")
	h := newHarness(t, []model.HWDevice{dev}, []model.Object{obj})

	// Configure drives the pin low once.
	require.Equal(t, []bool{false}, h.bridge.OutputValues(13))

	h.trigger("1")
	require.Eventually(t, func() bool {
		v := h.bridge.OutputValues(13)
		return len(v) == 2 && v[1]
	}, testTimeout, testTick, "pin should go high on trigger")

	// Pin stays high for the full fixed duration.
	h.advance(999 * time.Millisecond)
	require.Equal(t, 2, len(h.bridge.OutputValues(13)))

	h.advance(time.Millisecond)
	require.Eventually(t, func() bool {
		v := h.bridge.OutputValues(13)
		return len(v) == 3 && !v[2]
	}, testTimeout, testTick, "pin should go low after the pulse duration")

	obj2, found := h.service.ObjectByID("pulse")
	require.True(t, found)
	require.Eventually(t, func() bool { return !obj2.Actual().Busy }, testTimeout, testTick)
	require.Equal(t, uint64(1), obj2.Actual().TriggerCount)
}

func TestPulseOutputIgnoresOtherInput(t *testing.T) {
	dev, obj := pulseConfig("1", "1000")
	h := newHarness(t, []model.HWDevice{dev}, []model.Object{obj})

	// Case and whitespace sensitive, exact match only.
	for _, cmd := range []string{"0", "11", " 1", "1 ", "x", ""} {
		h.trigger(cmd)
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []bool{false}, h.bridge.OutputValues(13), "non matching input must be a silent no-op")
}

func TestPulseOutputDropsTriggersWhileBusy(t *testing.T) {
	dev, obj := pulseConfig("1", "1000")
	h := newHarness(t, []model.HWDevice{dev}, []model.Object{obj})

	h.trigger("1")
	require.Eventually(t, func() bool {
		return len(h.bridge.OutputValues(13)) == 2
	}, testTimeout, testTick)

	// The device is unresponsive while the sequence runs.
	h.trigger("1")
	h.trigger("1")
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.OutputValues(13)) == 3
	}, testTimeout, testTick)

	obj2, found := h.service.ObjectByID("pulse")
	require.True(t, found)
	require.Eventually(t, func() bool { return !obj2.Actual().Busy }, testTimeout, testTick)
	require.Equal(t, uint64(1), obj2.Actual().TriggerCount, "triggers during a sequence must be dropped")

	// A new trigger after completion starts a new sequence.
	h.trigger("1")
	require.Eventually(t, func() bool {
		return len(h.bridge.OutputValues(13)) == 4
	}, testTimeout, testTick)
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.OutputValues(13)) == 5
	}, testTimeout, testTick)
}

func sweepConfig(trigger string, angles string, withBuzzer bool, beep bool) ([]model.HWDevice, model.Object) {
	hw := []model.HWDevice{
		{ID: "arm", Type: model.HWDeviceTypeServo, Pin: 9},
	}
	obj := model.Object{
		ID:      "sweep",
		Type:    model.ObjectTypeServoSweep,
		Trigger: trigger,
		Connections: map[model.ConnectionName]model.Connection{
			model.ConnectionNameServo: {
				DeviceID: "arm",
				Config:   map[string]string{"angles": angles, "pause": "1000", "hold": "500"},
			},
		},
	}
	if withBuzzer {
		hw = append(hw, model.HWDevice{ID: "buzzer", Type: model.HWDeviceTypeGPIO, Pin: 8})
		obj.Connections[model.ConnectionNameBuzzer] = model.Connection{
			DeviceID: "buzzer",
			Config:   map[string]string{"beep": map[bool]string{true: "true", false: "false"}[beep]},
		}
	}
	return hw, obj
}

func TestServoSweepSequence(t *testing.T) {
	hw, obj := sweepConfig("BP", "0,90,180", false, false)
	h := newHarness(t, hw, []model.Object{obj})

	h.trigger("BP")
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 1
	}, testTimeout, testTick, "first position should be written on trigger")
	require.Equal(t, []int{0}, h.bridge.ServoAngles(9))

	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 2
	}, testTimeout, testTick)
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 3
	}, testTimeout, testTick)
	require.Equal(t, []int{0, 90, 180}, h.bridge.ServoAngles(9))

	// Last pause plus hold, then idle again.
	h.advance(time.Second)
	h.advance(500 * time.Millisecond)
	obj2, found := h.service.ObjectByID("sweep")
	require.True(t, found)
	require.Eventually(t, func() bool { return !obj2.Actual().Busy }, testTimeout, testTick)
	require.NotNil(t, obj2.Actual().Angle)
	require.Equal(t, 180, *obj2.Actual().Angle)
}

func TestServoSweepClampsAngles(t *testing.T) {
	hw, obj := sweepConfig("BP", "-10,200", false, false)
	h := newHarness(t, hw, []model.Object{obj})

	h.trigger("BP")
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 2
	}, testTimeout, testTick)
	// Writes are absolute and clamped to 0..180 degrees.
	require.Equal(t, []int{0, 180}, h.bridge.ServoAngles(9))

	// Last pause plus hold, then idle again.
	h.advance(time.Second)
	h.advance(500 * time.Millisecond)

	// The reported state matches what the device wrote.
	obj2, found := h.service.ObjectByID("sweep")
	require.True(t, found)
	require.Eventually(t, func() bool { return !obj2.Actual().Busy }, testTimeout, testTick)
	require.NotNil(t, obj2.Actual().Angle)
	require.LessOrEqual(t, *obj2.Actual().Angle, 180)
	require.Equal(t, 180, *obj2.Actual().Angle)
}

func TestServoSweepCaseSensitive(t *testing.T) {
	hw, obj := sweepConfig("BP", "0,90", false, false)
	h := newHarness(t, hw, []model.Object{obj})

	h.trigger("bp")
	h.trigger("BP ")
	h.trigger("Bp")
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, h.bridge.ServoAngles(9))
}

func TestServoSweepBuzzer(t *testing.T) {
	hw, obj := sweepConfig("BP", "0,90", true, true)
	h := newHarness(t, hw, []model.Object{obj})

	// Buzzer pin configured low at startup.
	require.Equal(t, []bool{false}, h.bridge.OutputValues(8))

	h.trigger("BP")
	require.Eventually(t, func() bool {
		v := h.bridge.OutputValues(8)
		return len(v) == 2 && v[1]
	}, testTimeout, testTick, "buzzer should be on during the sweep")

	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 2
	}, testTimeout, testTick)
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		v := h.bridge.OutputValues(8)
		return len(v) == 3 && !v[2]
	}, testTimeout, testTick, "buzzer should be off after the sweep")
}

func TestServoSweepBuzzerDeclarationOnly(t *testing.T) {
	hw, obj := sweepConfig("BP", "0,90", true, false)
	h := newHarness(t, hw, []model.Object{obj})

	h.trigger("BP")
	h.advance(time.Second)
	require.Eventually(t, func() bool {
		return len(h.bridge.ServoAngles(9)) == 2
	}, testTimeout, testTick)
	// Without beep the buzzer pin is configured but never driven.
	require.Equal(t, []bool{false}, h.bridge.OutputValues(8))
}

func TestActualsSorted(t *testing.T) {
	devPulse, objPulse := pulseConfig("1", "1000")
	hwSweep, objSweep := sweepConfig("BP", "0,90", false, false)
	h := newHarness(t, append(hwSweep, devPulse), []model.Object{objSweep, objPulse})

	actuals := h.service.Actuals()
	require.Len(t, actuals, 2)
	require.Equal(t, model.ObjectID("pulse"), actuals[0].ID)
	require.Equal(t, model.ObjectID("sweep"), actuals[1].ID)
}
