package ipc

import "sync/atomic"

// InitMetricState tracks one initialization phase through its lifecycle.
// Transitions only move forward: NOT_STARTED -> IN_PROGRESS -> DONE/FAILED ->
// REPORTED.
type InitMetricState uint32

const (
	MetricNotStarted InitMetricState = iota
	MetricInProgress
	MetricDone
	MetricFailed
	MetricReported
)

// Terminal reports whether end_time_ms and duration_ms are valid for this
// state.
func (s InitMetricState) Terminal() bool {
	return s == MetricDone || s == MetricFailed || s == MetricReported
}

func (s InitMetricState) String() string {
	switch s {
	case MetricNotStarted:
		return "not_started"
	case MetricInProgress:
		return "in_progress"
	case MetricDone:
		return "done"
	case MetricFailed:
		return "failed"
	case MetricReported:
		return "reported"
	default:
		return "unknown"
	}
}

// InitTimeMetric is one phase slot in the timeline: 24 bytes, u64 fields at
// offsets 8 and 16. end/duration are published before the state flips to a
// terminal value, so a reader that observes a terminal state sees them fully
// written.
type InitTimeMetric struct {
	state      atomic.Uint32
	reserved   [4]byte
	endTimeMS  atomic.Uint64
	durationMS atomic.Uint64
}

// MetricSnapshot is a reader-side copy of one phase. EndTimeMS and DurationMS
// are meaningful only when State.Terminal() is true.
type MetricSnapshot struct {
	State      InitMetricState
	EndTimeMS  uint64
	DurationMS uint64
}

// InitPhase names one slot of the timeline.
type InitPhase int

const (
	PhaseGPSTTFF InitPhase = iota
	PhaseGPSRTKFix
	PhaseNetworkUp
	PhaseNTRIPConnected
	PhaseMQTTConnected
	PhaseSystemReady
	phaseCount
)

// Phases lists every timeline phase in layout order.
func Phases() []InitPhase {
	return []InitPhase{
		PhaseGPSTTFF, PhaseGPSRTKFix, PhaseNetworkUp,
		PhaseNTRIPConnected, PhaseMQTTConnected, PhaseSystemReady,
	}
}

func (p InitPhase) String() string {
	switch p {
	case PhaseGPSTTFF:
		return "gps_ttff"
	case PhaseGPSRTKFix:
		return "gps_rtk_fix"
	case PhaseNetworkUp:
		return "network_up"
	case PhaseNTRIPConnected:
		return "ntrip_connected"
	case PhaseMQTTConnected:
		return "mqtt_connected"
	case PhaseSystemReady:
		return "system_ready"
	default:
		return "invalid"
	}
}

// SystemInitTimeline records how long each boot phase took. Each phase has a
// single writer process; the creator stamps start_time_ms once and every
// duration is measured from it.
type SystemInitTimeline struct {
	gpsTTFF        InitTimeMetric
	gpsRTKFix      InitTimeMetric
	networkUp      InitTimeMetric
	ntripConnected InitTimeMetric
	mqttConnected  InitTimeMetric
	systemReady    InitTimeMetric

	lastUpdateMS atomic.Uint64
	startTimeMS  atomic.Uint64
}

func (t *SystemInitTimeline) metric(p InitPhase) *InitTimeMetric {
	switch p {
	case PhaseGPSTTFF:
		return &t.gpsTTFF
	case PhaseGPSRTKFix:
		return &t.gpsRTKFix
	case PhaseNetworkUp:
		return &t.networkUp
	case PhaseNTRIPConnected:
		return &t.ntripConnected
	case PhaseMQTTConnected:
		return &t.mqttConnected
	case PhaseSystemReady:
		return &t.systemReady
	default:
		return nil
	}
}

// Start stamps the timeline baseline. Called once by the region creator;
// later durations are measured from this instant.
func (t *SystemInitTimeline) Start(nowMS uint64) {
	t.startTimeMS.Store(nowMS)
	t.lastUpdateMS.Store(nowMS)
}

func (t *SystemInitTimeline) StartTimeMS() uint64 {
	return t.startTimeMS.Load()
}

func (t *SystemInitTimeline) LastUpdateMS() uint64 {
	return t.lastUpdateMS.Load()
}

// Begin marks a phase in progress.
func (t *SystemInitTimeline) Begin(p InitPhase, nowMS uint64) {
	m := t.metric(p)
	if m == nil {
		return
	}
	m.state.Store(uint32(MetricInProgress))
	t.lastUpdateMS.Store(nowMS)
}

// Complete publishes a successful phase. The end time and duration land
// before the DONE state becomes observable.
func (t *SystemInitTimeline) Complete(p InitPhase, nowMS uint64) {
	t.finish(p, MetricDone, nowMS)
}

// Fail publishes a failed phase with the same ordering as Complete.
func (t *SystemInitTimeline) Fail(p InitPhase, nowMS uint64) {
	t.finish(p, MetricFailed, nowMS)
}

func (t *SystemInitTimeline) finish(p InitPhase, terminal InitMetricState, nowMS uint64) {
	m := t.metric(p)
	if m == nil {
		return
	}
	start := t.startTimeMS.Load()
	duration := uint64(0)
	if nowMS > start {
		duration = nowMS - start
	}
	m.endTimeMS.Store(nowMS)
	m.durationMS.Store(duration)
	m.state.Store(uint32(terminal))
	t.lastUpdateMS.Store(nowMS)
}

// MarkReported flips a DONE or FAILED phase to REPORTED once its value has
// been surfaced to an external sink. Returns false when the phase was not in
// a reportable state; REPORTED is one-way within a region lifetime.
func (t *SystemInitTimeline) MarkReported(p InitPhase, nowMS uint64) bool {
	m := t.metric(p)
	if m == nil {
		return false
	}
	if m.state.CompareAndSwap(uint32(MetricDone), uint32(MetricReported)) ||
		m.state.CompareAndSwap(uint32(MetricFailed), uint32(MetricReported)) {
		t.lastUpdateMS.Store(nowMS)
		return true
	}
	return false
}

// Snapshot reads one phase. The state load gates the value loads: end and
// duration are read only after a terminal state has been observed.
func (t *SystemInitTimeline) Snapshot(p InitPhase) MetricSnapshot {
	m := t.metric(p)
	if m == nil {
		return MetricSnapshot{}
	}
	state := InitMetricState(m.state.Load())
	snap := MetricSnapshot{State: state}
	if state.Terminal() {
		snap.EndTimeMS = m.endTimeMS.Load()
		snap.DurationMS = m.durationMS.Load()
	}
	return snap
}
