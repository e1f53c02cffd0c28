package controller

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
)

type phaseStatus struct {
	State      string `json:"state"`
	EndTimeMS  uint64 `json:"end_time_ms,omitempty"`
	DurationMS uint64 `json:"duration_ms,omitempty"`
}

type statusResponse struct {
	StartTimeMS uint64                 `json:"start_time_ms"`
	Phases      map[string]phaseStatus `json:"phases"`
	Sound       SoundHealth            `json:"sound"`
	GPSAcked    bool                   `json:"gps_acked"`
	IMUAcked    bool                   `json:"imu_acked"`
}

func (s *Service) buildRouter(monitor *SoundMonitor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware("controller"))
	if len(s.cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.startedAt).String(),
			"service": "vehiclectl",
		})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.statusSnapshot(monitor))
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Service) statusSnapshot(monitor *SoundMonitor) statusResponse {
	timeline := s.timeline.State()
	table := s.devices.State()

	phases := make(map[string]phaseStatus, len(ipc.Phases()))
	for _, phase := range ipc.Phases() {
		snap := timeline.Snapshot(phase)
		phases[phase.String()] = phaseStatus{
			State:      snap.State.String(),
			EndTimeMS:  snap.EndTimeMS,
			DurationMS: snap.DurationMS,
		}
	}

	return statusResponse{
		StartTimeMS: timeline.StartTimeMS(),
		Phases:      phases,
		Sound:       monitor.Check(),
		GPSAcked:    table.GPSAcked(),
		IMUAcked:    table.IMUAcked(),
	}
}
