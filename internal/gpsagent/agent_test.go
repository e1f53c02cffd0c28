package gpsagent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"

	"github.com/greenroad/vehiclectl/internal/ipc"
)

// fakePort feeds a canned NMEA stream and records that it was closed.
type fakePort struct {
	io.Reader
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) Open(c *serial.Config) error { return nil }

func newTestAgent(stream string, openErr error) (*Agent, *ipc.DeviceConfigTable, *ipc.SystemInitTimeline) {
	table := &ipc.DeviceConfigTable{}
	timeline := &ipc.SystemInitTimeline{}
	timeline.Start(0)

	agent := New(table, timeline)
	agent.nowMS = func() uint64 { return 5000 }
	agent.openPort = func(cfg *serial.Config) (serial.Port, error) {
		if openErr != nil {
			return nil, openErr
		}
		return &fakePort{Reader: strings.NewReader(stream)}, nil
	}
	return agent, table, timeline
}

func TestParseGGAQuality(t *testing.T) {
	cases := []struct {
		line    string
		quality int
		ok      bool
	}{
		{"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47", 1, true},
		{"$GNGGA,123519,4807.038,N,01131.000,E,4,12,0.6,545.4,M,46.9,M,,*58", 4, true},
		{"$GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,*66", 0, true},
		{"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A", 0, false},
		{"GPGGA,123519,4807.038,N,01131.000,E,1,08", 0, false},
		{"$GPGGA,123519", 0, false},
		{"$GPGGA,1,2,3,4,5,bogus,7", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		quality, ok := parseGGAQuality(tc.line)
		if ok != tc.ok || quality != tc.quality {
			t.Errorf("parseGGAQuality(%q) = (%d, %v), want (%d, %v)",
				tc.line, quality, ok, tc.quality, tc.ok)
		}
	}
}

func TestTrackFixesCompletesTTFFAndRTK(t *testing.T) {
	stream := strings.Join([]string{
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,*66",
		"$GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
		"$GNGGA,123525,4807.038,N,01131.000,E,4,12,0.6,545.4,M,46.9,M,,*58",
	}, "\n") + "\n"
	agent, table, timeline := newTestAgent(stream, nil)

	table.SetGPS(ipc.DeviceParams{
		Port:     "/dev/ttyAMA0",
		Baudrate: 460800,
		Options:  uint8(ipc.GpsOptionUseRTK),
		Type:     ipc.DeviceTypeSerial,
		Enabled:  true,
	})
	table.Publish()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- agent.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return on context cancellation")
	}

	if got := timeline.Snapshot(ipc.PhaseGPSTTFF).State; got != ipc.MetricDone {
		t.Fatalf("ttff state = %v, want done", got)
	}
	if got := timeline.Snapshot(ipc.PhaseGPSRTKFix).State; got != ipc.MetricDone {
		t.Fatalf("rtk state = %v, want done", got)
	}
	if !table.GPSAcked() {
		t.Fatalf("gps config not acknowledged")
	}
	// The IMU slot is disabled, which counts as handled.
	if !table.IMUAcked() {
		t.Fatalf("disabled imu config not acknowledged")
	}
}

func TestOpenFailureFailsPhasesWithoutAck(t *testing.T) {
	agent, table, timeline := newTestAgent("", errors.New("no such device"))

	table.SetGPS(ipc.DeviceParams{
		Port:     "/dev/ttyAMA0",
		Baudrate: 115200,
		Options:  uint8(ipc.GpsOptionUseRTK),
		Type:     ipc.DeviceTypeSerial,
		Enabled:  true,
	})
	table.Publish()

	err := agent.Run(context.Background())
	if err == nil {
		t.Fatalf("Run succeeded with an unopenable device")
	}
	if got := timeline.Snapshot(ipc.PhaseGPSTTFF).State; got != ipc.MetricFailed {
		t.Fatalf("ttff state = %v, want failed", got)
	}
	if got := timeline.Snapshot(ipc.PhaseGPSRTKFix).State; got != ipc.MetricFailed {
		t.Fatalf("rtk state = %v, want failed", got)
	}
	if table.GPSAcked() {
		t.Fatalf("gps config acknowledged despite open failure")
	}
}

func TestDisabledGPSAcknowledgedImmediately(t *testing.T) {
	agent, table, _ := newTestAgent("", nil)
	table.Publish()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- agent.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for !table.GPSAcked() {
		select {
		case <-deadline:
			t.Fatalf("disabled gps never acknowledged")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// blockingPort never yields data; Read fails only once the port is closed.
type blockingPort struct {
	once    sync.Once
	unblock chan struct{}
}

func (p *blockingPort) Read(b []byte) (int, error) {
	<-p.unblock
	return 0, errors.New("read on closed port")
}

func (p *blockingPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *blockingPort) Open(c *serial.Config) error { return nil }

func (p *blockingPort) Close() error {
	p.once.Do(func() { close(p.unblock) })
	return nil
}

func TestCancellationUnblocksStalledStream(t *testing.T) {
	agent, table, _ := newTestAgent("", nil)
	port := &blockingPort{unblock: make(chan struct{})}
	agent.openPort = func(cfg *serial.Config) (serial.Port, error) { return port, nil }

	table.SetGPS(ipc.DeviceParams{
		Port:     "/dev/ttyAMA0",
		Baudrate: 115200,
		Type:     ipc.DeviceTypeSerial,
		Enabled:  true,
	})
	table.Publish()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- agent.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for !table.GPSAcked() {
		select {
		case <-deadline:
			t.Fatalf("gps never came up")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run still blocked in the serial read after cancellation")
	}
}

func TestWaitReadyHonorsCancellation(t *testing.T) {
	agent, _, _ := newTestAgent("", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := agent.WaitReady(ctx)
	if !errors.Is(err, ErrConfigNotPublished) {
		t.Fatalf("WaitReady on unpublished table = %v, want ErrConfigNotPublished", err)
	}
}

func TestWaitReadyReturnsOncePublished(t *testing.T) {
	agent, table, _ := newTestAgent("", nil)
	table.Publish()

	if err := agent.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady on published table: %v", err)
	}
}
