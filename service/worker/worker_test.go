package worker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/model"
	"github.com/posturekit/PostureWorker/pkg/serial"
	"github.com/posturekit/PostureWorker/service/bridge"
)

// testPort is an in-memory serial port. Writes on the test side become
// reads on the worker side, one chunk per read.
type testPort struct {
	mutex  sync.Mutex
	chunks chan []byte
	closed chan struct{}
	once   sync.Once
}

func newTestPort() *testPort {
	return &testPort{
		chunks: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (p *testPort) send(data string) {
	p.chunks <- []byte(data)
}

func (p *testPort) Read(buf []byte) (int, error) {
	select {
	case chunk := <-p.chunks:
		return copy(buf, chunk), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *testPort) Write(buf []byte) (int, error) {
	return len(buf), nil
}

func (p *testPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func testConfig(framing model.FramingMode) model.LocalConfiguration {
	return model.LocalConfiguration{
		Serial: model.SerialConfig{
			Device:  "/dev/ttyTEST",
			Baud:    9600,
			Framing: framing,
		},
		Devices: []model.HWDevice{
			{ID: "led", Type: model.HWDeviceTypeGPIO, Pin: 13},
			{ID: "arm", Type: model.HWDeviceTypeServo, Pin: 9},
		},
		Objects: []model.Object{
			{
				ID:      "corrector",
				Type:    model.ObjectTypePulseOutput,
				Trigger: "1",
				Connections: map[model.ConnectionName]model.Connection{
					model.ConnectionNameOutput: {DeviceID: "led", Config: map[string]string{"duration": "1000"}},
				},
			},
			{
				ID:      "sweeper",
				Type:    model.ObjectTypeServoSweep,
				Trigger: "BP",
				Connections: map[model.ConnectionName]model.Connection{
					model.ConnectionNameServo: {DeviceID: "arm", Config: map[string]string{"angles": "0,90,180", "pause": "1000"}},
				},
			},
		},
	}
}

func startWorker(t *testing.T, config model.LocalConfiguration) (*testPort, *bridge.VirtualBridge, *clock.Mock, Service) {
	t.Helper()
	log := zerolog.Nop()
	br := bridge.NewVirtualBridge(log)
	port := newTestPort()
	clk := clock.NewMock()

	svc, err := NewService(config, Dependencies{
		Log:    log,
		Bridge: br,
		PortBuilder: func(model.SerialConfig) (serial.Port, error) {
			return port, nil
		},
		Clock: clk,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = svc.Run(ctx)
	}()
	t.Cleanup(cancel)

	// Wait until devices are configured (both start pins are written).
	require.Eventually(t, func() bool {
		return len(br.OutputValues(13)) >= 1
	}, 5*time.Second, time.Millisecond)
	return port, br, clk, svc
}

func TestWorkerSerialPulse(t *testing.T) {
	port, br, clk, _ := startWorker(t, testConfig(model.FramingModeByte))

	// Unknown bytes are silently ignored.
	port.send("x")
	port.send("2")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, len(br.OutputValues(13)))

	port.send("1")
	require.Eventually(t, func() bool {
		v := br.OutputValues(13)
		return len(v) == 2 && v[1]
	}, 5*time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	clk.Add(time.Second)
	require.Eventually(t, func() bool {
		v := br.OutputValues(13)
		return len(v) == 3 && !v[2]
	}, 5*time.Second, time.Millisecond)
}

func TestWorkerSerialSweepExactMatch(t *testing.T) {
	port, br, _, _ := startWorker(t, testConfig(model.FramingModePacket))

	// Packet framing performs no trimming and no case folding.
	port.send("bp")
	port.send("BP ")
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, br.ServoAngles(9))

	port.send("BP")
	require.Eventually(t, func() bool {
		return len(br.ServoAngles(9)) == 1
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, []int{0}, br.ServoAngles(9))
}

func TestWorkerManualTrigger(t *testing.T) {
	_, br, _, svc := startWorker(t, testConfig(model.FramingModeByte))

	svc.Trigger("1", "http")
	require.Eventually(t, func() bool {
		v := br.OutputValues(13)
		return len(v) == 2 && v[1]
	}, 5*time.Second, time.Millisecond)

	actuals := svc.Actuals()
	require.Len(t, actuals, 2)
}

func TestWorkerActualsDuringStartup(t *testing.T) {
	log := zerolog.Nop()
	br := bridge.NewVirtualBridge(log)
	port := newTestPort()

	svc, err := NewService(testConfig(model.FramingModeByte), Dependencies{
		Log:    log,
		Bridge: br,
		PortBuilder: func(model.SerialConfig) (serial.Port, error) {
			return port, nil
		},
		Clock: clock.NewMock(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Actuals may be called from the HTTP server while Run is still
	// building its services.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			svc.Actuals()
		}
	}()
	go func() {
		_ = svc.Run(ctx)
	}()
	<-done

	require.Eventually(t, func() bool {
		return len(svc.Actuals()) == 2
	}, 5*time.Second, time.Millisecond)
}

func TestWorkerRejectsInvalidConfig(t *testing.T) {
	config := testConfig(model.FramingModeByte)
	config.Serial.Baud = 0
	_, err := NewService(config, Dependencies{Log: zerolog.Nop()})
	require.Error(t, err)
}
