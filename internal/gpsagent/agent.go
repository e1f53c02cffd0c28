// Package gpsagent implements the gpsctl agent: it consumes the published
// device configuration, brings up the configured serial devices, and
// publishes the GPS fix phases of the boot timeline.
package gpsagent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/ipc"
)

var ErrConfigNotPublished = errors.New("gpsagent: device config not published")

// readyPollInterval paces the wait for the controller's publish barrier.
const readyPollInterval = 200 * time.Millisecond

// GGA fix quality values that complete the timeline phases.
const (
	fixQualityGPS      = 1
	fixQualityRTKFixed = 4
	fixQualityRTKFloat = 5
)

// PortOpener opens a serial device; injectable for tests.
type PortOpener func(cfg *serial.Config) (serial.Port, error)

// Agent consumes the device config table and reports GPS fix progress. It
// holds guest views of the records; region handles stay with the caller.
type Agent struct {
	table    *ipc.DeviceConfigTable
	timeline *ipc.SystemInitTimeline
	nowMS    func() uint64
	openPort PortOpener
}

func New(table *ipc.DeviceConfigTable, timeline *ipc.SystemInitTimeline) *Agent {
	return &Agent{
		table:    table,
		timeline: timeline,
		nowMS:    ipc.NowMS,
		openPort: serial.Open,
	}
}

// WaitReady polls the table's publish barrier. The device slots must not be
// read before it reports true.
func (a *Agent) WaitReady(ctx context.Context) error {
	for !a.table.Ready() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConfigNotPublished, ctx.Err())
		case <-time.After(readyPollInterval):
		}
	}
	return nil
}

// Run waits for the config, brings up both devices, and tracks GPS fixes
// until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.WaitReady(ctx); err != nil {
		return err
	}

	imu := a.table.IMU()
	if err := a.applyIMU(imu); err != nil {
		log.Error().Err(err).Str("port", imu.Port).Msg("imu bring-up failed")
	} else {
		a.table.AckIMU()
	}

	gps := a.table.GPS()
	if !gps.Enabled {
		log.Info().Msg("gps disabled by config")
		a.table.AckGPS()
		<-ctx.Done()
		return nil
	}
	return a.runGPS(ctx, gps)
}

// applyIMU verifies the configured IMU device and applies its save/restore
// option. A disabled slot succeeds trivially.
func (a *Agent) applyIMU(p ipc.DeviceParams) error {
	if !p.Enabled {
		return nil
	}
	port, err := a.openPort(&serial.Config{
		Address:  p.Port,
		BaudRate: int(p.Baudrate),
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return fmt.Errorf("gpsagent: open imu %s: %w", p.Port, err)
	}
	defer port.Close()

	if ipc.HasGpsOption(p.Options, ipc.GpsOptionIMURestore) {
		log.Info().Str("port", p.Port).Msg("imu calibration restore requested")
	}
	return nil
}

// runGPS opens the GPS device, acknowledges the config, and feeds the fix
// phases from the NMEA stream. The acknowledgment lands only after the
// parameters have been acted on.
func (a *Agent) runGPS(ctx context.Context, p ipc.DeviceParams) error {
	wantRTK := ipc.HasGpsOption(p.Options, ipc.GpsOptionUseRTK)

	a.timeline.Begin(ipc.PhaseGPSTTFF, a.nowMS())
	if wantRTK {
		a.timeline.Begin(ipc.PhaseGPSRTKFix, a.nowMS())
	}

	port, err := a.openPort(&serial.Config{
		Address:  p.Port,
		BaudRate: int(p.Baudrate),
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		a.timeline.Fail(ipc.PhaseGPSTTFF, a.nowMS())
		if wantRTK {
			a.timeline.Fail(ipc.PhaseGPSRTKFix, a.nowMS())
		}
		return fmt.Errorf("gpsagent: open gps %s: %w", p.Port, err)
	}
	defer port.Close()

	// A scanner blocked in Read only notices cancellation at the next port
	// timeout; closing the port fails the read immediately.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	a.table.AckGPS()
	log.Info().
		Str("port", p.Port).
		Uint32("baudrate", p.Baudrate).
		Bool("rtk", wantRTK).
		Msg("gps device up")

	a.trackFixes(ctx, bufio.NewScanner(port), wantRTK)
	<-ctx.Done()
	return nil
}

// trackFixes scans NMEA sentences and completes the fix phases. TTFF
// completes on the first valid fix; the RTK phase completes on an RTK fixed
// or float solution.
func (a *Agent) trackFixes(ctx context.Context, lines *bufio.Scanner, wantRTK bool) {
	ttffDone := a.timeline.Snapshot(ipc.PhaseGPSTTFF).State.Terminal()
	rtkDone := !wantRTK || a.timeline.Snapshot(ipc.PhaseGPSRTKFix).State.Terminal()

	for !(ttffDone && rtkDone) {
		if ctx.Err() != nil {
			return
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("gps stream read failed")
			}
			return
		}

		quality, ok := parseGGAQuality(lines.Text())
		if !ok {
			continue
		}
		if !ttffDone && quality >= fixQualityGPS {
			a.timeline.Complete(ipc.PhaseGPSTTFF, a.nowMS())
			ttffDone = true
			log.Info().Int("quality", quality).Msg("gps first fix")
		}
		if !rtkDone && (quality == fixQualityRTKFixed || quality == fixQualityRTKFloat) {
			a.timeline.Complete(ipc.PhaseGPSRTKFix, a.nowMS())
			rtkDone = true
			log.Info().Int("quality", quality).Msg("gps rtk fix")
		}
	}
}

// parseGGAQuality extracts the fix quality field from a GGA sentence.
// Non-GGA sentences and malformed input return ok=false.
func parseGGAQuality(line string) (int, bool) {
	if !strings.HasPrefix(line, "$") {
		return 0, false
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, ",")
	if len(fields) < 7 || !strings.HasSuffix(fields[0], "GGA") {
		return 0, false
	}
	quality, err := strconv.Atoi(fields[6])
	if err != nil {
		return 0, false
	}
	return quality, true
}
