package gpsagent

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
	"github.com/greenroad/vehiclectl/internal/shm"
)

const (
	attachAttempts = 10
	attachBackoff  = 500 * time.Millisecond
)

// Service attaches guest handles to the device config table and the boot
// timeline, then runs the agent until a process signal.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	devices, err := attach[ipc.DeviceConfigTable](ctx, ipc.DeviceConfigRegionName)
	if err != nil {
		return err
	}
	defer devices.Close()

	timeline, err := attach[ipc.SystemInitTimeline](ctx, ipc.InitTimelineRegionName)
	if err != nil {
		return err
	}
	defer timeline.Close()

	agent := New(devices.State(), timeline.State())
	return agent.Run(ctx)
}

func attach[T any](ctx context.Context, name string) (*shm.Region[T], error) {
	var lastErr error
	for attempt := 1; attempt <= attachAttempts; attempt++ {
		region, err := shm.Open[T](name)
		observability.RecordRegionAttach(name, "open", err == nil)
		if err == nil {
			return region, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("region", name).Int("attempt", attempt).Msg("region not available")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(attachBackoff):
		}
	}
	return nil, fmt.Errorf("gpsagent: attach %s: %w", name, lastErr)
}
