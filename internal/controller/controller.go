// Package controller implements the vehiclectl domain controller: it owns the
// shared-memory regions, publishes the device configuration, supervises the
// sound agent, and reports the boot timeline.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
	"github.com/greenroad/vehiclectl/internal/shm"
)

// Service runs the domain controller lifecycle: provision regions, publish
// device config, supervise, and tear the regions down on shutdown. The
// controller is the single owner handle of every region it creates.
type Service struct {
	cfg   config.ControllerConfig
	nowMS func() uint64

	timeline *shm.Region[ipc.SystemInitTimeline]
	sound    *shm.Region[ipc.SoundIpcData]
	devices  *shm.Region[ipc.DeviceConfigTable]

	startedAt time.Time
}

func NewService(cfg config.ControllerConfig) *Service {
	return &Service{
		cfg:       cfg,
		nowMS:     ipc.NowMS,
		startedAt: time.Now(),
	}
}

// Run blocks until SIGINT/SIGTERM. Region teardown happens on the way out,
// which unlinks every region name; agent handles left attached go stale by
// design.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()

	if err := s.Provision(); err != nil {
		return err
	}

	monitor := NewSoundMonitor(&s.sound.State().ClientToServer, s.nowMS)
	reporter := NewTimelineReporter(s.timeline.State(), s.nowMS)

	supervisors := s.startSupervisors(ctx, monitor, reporter, s.devices.State())
	// The supervisors dereference the mapped records on every tick; they must
	// be joined before the regions unmap.
	defer func() {
		stop()
		supervisors.Wait()
		s.CloseRegions()
	}()

	srv := &http.Server{Addr: s.cfg.StatusAddr, Handler: s.buildRouter(monitor)}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.StatusAddr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("controller: status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("controller shutting down")
	return nil
}

// Provision creates the three regions, stamps the timeline baseline, and
// publishes the device configuration table.
func (s *Service) Provision() error {
	timeline, err := createRegion[ipc.SystemInitTimeline](ipc.InitTimelineRegionName)
	if err != nil {
		return err
	}
	sound, err := createRegion[ipc.SoundIpcData](ipc.SoundRegionName)
	if err != nil {
		timeline.Close()
		return err
	}
	devices, err := createRegion[ipc.DeviceConfigTable](ipc.DeviceConfigRegionName)
	if err != nil {
		timeline.Close()
		sound.Close()
		return err
	}

	s.timeline, s.sound, s.devices = timeline, sound, devices
	s.timeline.State().Start(s.nowMS())

	if err := s.publishDeviceConfig(); err != nil {
		s.CloseRegions()
		return err
	}
	return nil
}

func createRegion[T any](name string) (*shm.Region[T], error) {
	r, err := shm.Create[T](name)
	observability.RecordRegionAttach(name, "create", err == nil)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// publishDeviceConfig fills both device slots while the table is unpublished,
// then releases it. The table is immutable afterwards; reconfiguration means
// recreating the region.
func (s *Service) publishDeviceConfig() error {
	table := s.devices.State()
	table.ApplyDefaults()

	gps, err := s.cfg.GPS.DeviceParams()
	if err != nil {
		return fmt.Errorf("controller: gps config: %w", err)
	}
	imu, err := s.cfg.IMU.DeviceParams()
	if err != nil {
		return fmt.Errorf("controller: imu config: %w", err)
	}

	table.SetGPS(gps)
	table.SetIMU(imu)
	table.Publish()

	log.Info().
		Str("gps_port", gps.Port).
		Uint32("gps_baudrate", gps.Baudrate).
		Str("imu_port", imu.Port).
		Msg("device config published")
	return nil
}

// startSupervisors runs the monitor, reporter, and ack watcher. The caller
// waits on the returned group before releasing the regions they read.
func (s *Service) startSupervisors(ctx context.Context, monitor *SoundMonitor, reporter *TimelineReporter, table *ipc.DeviceConfigTable) *sync.WaitGroup {
	wg := &sync.WaitGroup{}
	wg.Add(3)
	go func() { defer wg.Done(); monitor.Run(ctx, time.Second) }()
	go func() { defer wg.Done(); reporter.Run(ctx, time.Second) }()
	go func() { defer wg.Done(); s.watchAcks(ctx, table) }()
	return wg
}

// watchAcks logs once as each agent acknowledges its device parameters.
func (s *Service) watchAcks(ctx context.Context, table *ipc.DeviceConfigTable) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	gpsSeen, imuSeen := false, false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !gpsSeen && table.GPSAcked() {
				gpsSeen = true
				log.Info().Msg("gps agent acknowledged device config")
			}
			if !imuSeen && table.IMUAcked() {
				imuSeen = true
				log.Info().Msg("imu consumer acknowledged device config")
			}
			if gpsSeen && imuSeen {
				return
			}
		}
	}
}

// CloseRegions releases every owned region. The controller is the owner
// handle, so each close unlinks its region name.
func (s *Service) CloseRegions() {
	for _, c := range []interface{ Close() error }{s.timeline, s.sound, s.devices} {
		if c != nil {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("region close failed")
			}
		}
	}
	s.timeline, s.sound, s.devices = nil, nil, nil
}
