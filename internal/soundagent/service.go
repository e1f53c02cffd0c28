package soundagent

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
	"github.com/greenroad/vehiclectl/internal/shm"
)

const (
	attachAttempts = 10
	attachBackoff  = 500 * time.Millisecond
)

// Service attaches to the sound channel as a guest handle and runs the agent
// until a process signal. The controller provisions the region; a missing
// region means the controller is not up yet, so attachment retries with
// backoff before giving up.
type Service struct {
	cfg config.SoundConfig
}

func NewService(cfg config.SoundConfig) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	region, err := attach(ctx)
	if err != nil {
		return err
	}
	defer region.Close()

	agent := New(region.State(), s.cfg)
	agent.Run(ctx)
	return nil
}

func attach(ctx context.Context) (*shm.Region[ipc.SoundIpcData], error) {
	var lastErr error
	for attempt := 1; attempt <= attachAttempts; attempt++ {
		region, err := shm.Open[ipc.SoundIpcData](ipc.SoundRegionName)
		observability.RecordRegionAttach(ipc.SoundRegionName, "open", err == nil)
		if err == nil {
			return region, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("sound region not available")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(attachBackoff):
		}
	}
	return nil, fmt.Errorf("soundagent: attach: %w", lastErr)
}
