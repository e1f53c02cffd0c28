package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
)

// TimelineReporter surfaces finished boot phases and owns the system_ready
// aggregate. Phase writers publish their own metrics; the reporter only
// transitions them DONE/FAILED -> REPORTED and remembers the outcome, since
// REPORTED erases the success/failure distinction inside the region.
type TimelineReporter struct {
	timeline *ipc.SystemInitTimeline
	nowMS    func() uint64
	outcomes map[ipc.InitPhase]ipc.InitMetricState
}

func NewTimelineReporter(timeline *ipc.SystemInitTimeline, nowMS func() uint64) *TimelineReporter {
	return &TimelineReporter{
		timeline: timeline,
		nowMS:    nowMS,
		outcomes: make(map[ipc.InitPhase]ipc.InitMetricState),
	}
}

// ReportOnce scans every phase, logs and records newly terminal ones, and
// marks them REPORTED. Returns how many phases were surfaced.
func (r *TimelineReporter) ReportOnce() int {
	reported := 0
	for _, phase := range ipc.Phases() {
		snap := r.timeline.Snapshot(phase)
		if snap.State != ipc.MetricDone && snap.State != ipc.MetricFailed {
			continue
		}

		result := "done"
		event := log.Info()
		if snap.State == ipc.MetricFailed {
			result = "failed"
			event = log.Warn()
		}
		event.
			Str("phase", phase.String()).
			Uint64("end_time_ms", snap.EndTimeMS).
			Uint64("duration_ms", snap.DurationMS).
			Msg("init phase " + result)
		observability.RecordInitPhase(phase.String(), result, time.Duration(snap.DurationMS)*time.Millisecond)

		r.outcomes[phase] = snap.State
		if r.timeline.MarkReported(phase, r.nowMS()) {
			reported++
		}
	}
	return reported
}

// Succeeded reports whether a phase finished DONE, looking through a
// REPORTED transition this reporter performed.
func (r *TimelineReporter) Succeeded(phase ipc.InitPhase) bool {
	switch r.timeline.Snapshot(phase).State {
	case ipc.MetricDone:
		return true
	case ipc.MetricReported:
		return r.outcomes[phase] == ipc.MetricDone
	default:
		return false
	}
}

// CheckSystemReady completes the system_ready phase once its prerequisites
// hold: network up, a GPS fix (first fix or RTK), and the MQTT link.
// Returns true when system_ready is terminal.
func (r *TimelineReporter) CheckSystemReady() bool {
	if r.timeline.Snapshot(ipc.PhaseSystemReady).State.Terminal() {
		return true
	}
	gpsFixed := r.Succeeded(ipc.PhaseGPSTTFF) || r.Succeeded(ipc.PhaseGPSRTKFix)
	if !r.Succeeded(ipc.PhaseNetworkUp) || !gpsFixed || !r.Succeeded(ipc.PhaseMQTTConnected) {
		return false
	}
	r.timeline.Complete(ipc.PhaseSystemReady, r.nowMS())
	log.Info().Msg("system ready")
	return true
}

// Run reports terminal phases and evaluates system_ready on every tick.
func (r *TimelineReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckSystemReady()
			r.ReportOnce()
		}
	}
}
