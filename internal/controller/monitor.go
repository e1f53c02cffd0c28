package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/observability"
)

// SoundHealth is one liveness classification of the sound agent.
type SoundHealth struct {
	Alive          bool           `json:"alive"`
	State          ipc.SoundState `json:"-"`
	StateName      string         `json:"state"`
	Active         bool           `json:"active"`
	HeartbeatAge   time.Duration  `json:"-"`
	HeartbeatAgeMS int64          `json:"heartbeat_age_ms"`
}

// SoundMonitor classifies the sound agent from its published status. A dead
// agent's state is stale and reported as such; the fields keep their
// last-written values until the agent restarts.
type SoundMonitor struct {
	status *ipc.SoundStatus
	nowMS  func() uint64

	lastAlive bool
	everAlive bool
}

func NewSoundMonitor(status *ipc.SoundStatus, nowMS func() uint64) *SoundMonitor {
	return &SoundMonitor{status: status, nowMS: nowMS}
}

// Check performs one liveness classification and mirrors it into metrics.
func (m *SoundMonitor) Check() SoundHealth {
	now := m.nowMS()
	beat := m.status.HeartbeatMS()
	age := time.Duration(0)
	if now > beat {
		age = time.Duration(now-beat) * time.Millisecond
	}

	state := m.status.State()
	health := SoundHealth{
		Alive:          m.status.AliveAt(now),
		State:          state,
		StateName:      state.String(),
		Active:         m.status.Active(),
		HeartbeatAge:   age,
		HeartbeatAgeMS: age.Milliseconds(),
	}
	observability.RecordSoundLiveness(health.Alive, uint32(state), age)
	return health
}

// Run checks liveness on every tick and logs alive/dead transitions. A never
// started agent is not flagged dead until it has been seen alive once.
func (m *SoundMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := m.Check()
			switch {
			case health.Alive && !m.lastAlive:
				m.everAlive = true
				log.Info().
					Str("state", health.StateName).
					Bool("active", health.Active).
					Msg("sound agent alive")
			case !health.Alive && m.lastAlive && m.everAlive:
				log.Warn().
					Str("stale_state", health.StateName).
					Dur("heartbeat_age", health.HeartbeatAge).
					Msg("sound agent heartbeat lost")
			}
			if health.Alive && health.State.Error() {
				log.Error().Str("state", health.StateName).Msg("sound agent in error state")
			}
			m.lastAlive = health.Alive
		}
	}
}
