package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vehiclectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"component", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vehiclectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "path", "status"},
	)
	regionAttaches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vehiclectl",
			Subsystem: "shm",
			Name:      "region_attaches_total",
			Help:      "Shared-memory region create/open attempts.",
		},
		[]string{"region", "mode", "success"},
	)
	initPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vehiclectl",
			Subsystem: "init",
			Name:      "phase_duration_seconds",
			Help:      "Boot phase duration from the timeline baseline.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"phase", "result"},
	)
	soundAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vehiclectl",
			Subsystem: "sound",
			Name:      "agent_alive",
			Help:      "1 when the sound agent heartbeat is within the liveness window.",
		},
	)
	soundState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vehiclectl",
			Subsystem: "sound",
			Name:      "agent_state",
			Help:      "Last observed sound agent state code.",
		},
	)
	soundHeartbeatAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vehiclectl",
			Subsystem: "sound",
			Name:      "heartbeat_age_seconds",
			Help:      "Age of the sound agent heartbeat at last liveness check.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			regionAttaches, initPhaseDuration,
			soundAlive, soundState, soundHeartbeatAge,
		)
	})
}

func RecordHTTPRequest(component, method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, path, code).Inc()
	httpDuration.WithLabelValues(component, method, path, code).Observe(duration.Seconds())
}

func RecordRegionAttach(region, mode string, success bool) {
	regionAttaches.WithLabelValues(region, mode, strconv.FormatBool(success)).Inc()
}

func RecordInitPhase(phase, result string, duration time.Duration) {
	initPhaseDuration.WithLabelValues(phase, result).Observe(duration.Seconds())
}

func RecordSoundLiveness(alive bool, state uint32, heartbeatAge time.Duration) {
	if alive {
		soundAlive.Set(1)
	} else {
		soundAlive.Set(0)
	}
	soundState.Set(float64(state))
	soundHeartbeatAge.Set(heartbeatAge.Seconds())
}
