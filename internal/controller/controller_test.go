package controller

import (
	"context"
	"testing"
	"time"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/ipc"
)

func TestSupervisorsJoinOnCancellation(t *testing.T) {
	var sound ipc.SoundIpcData
	timeline := &ipc.SystemInitTimeline{}
	table := &ipc.DeviceConfigTable{}

	svc := NewService(config.ControllerConfig{})
	monitor := NewSoundMonitor(&sound.ClientToServer, ipc.NowMS)
	reporter := NewTimelineReporter(timeline, ipc.NowMS)

	ctx, cancel := context.WithCancel(context.Background())
	supervisors := svc.startSupervisors(ctx, monitor, reporter, table)
	cancel()

	done := make(chan struct{})
	go func() {
		supervisors.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("supervisors still running after cancellation")
	}
}
