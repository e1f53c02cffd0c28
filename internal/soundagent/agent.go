// Package soundagent implements the soundctl agent: it opens the sound
// channel, walks the start-up progression, heartbeats, and applies the
// controller's volume and mute requests.
package soundagent

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/ipc"
	"github.com/greenroad/vehiclectl/internal/queue"
)

// HeartbeatInterval keeps the heartbeat comfortably inside the 5000 ms
// liveness threshold.
const HeartbeatInterval = 1 * time.Second

// controlPollInterval bounds how stale an applied volume/mute value can be.
const controlPollInterval = 200 * time.Millisecond

// controlUpdate is one observed change of the controller's requests, handed
// to the apply worker through the in-process queue.
type controlUpdate struct {
	Volume uint8
	Mute   bool
}

// Agent drives the agent half of the sound channel. The region handle stays
// with the caller; Agent only touches the mapped record.
type Agent struct {
	data  *ipc.SoundIpcData
	cfg   config.SoundConfig
	nowMS func() uint64
	mixer Mixer

	controls *queue.Queue[controlUpdate]
	stopped  atomic.Bool

	// seen is the last queued update, touched only by the Run goroutine. The
	// applied values belong to the apply worker once it starts.
	seen          controlUpdate
	appliedVolume uint8
	appliedMute   bool
}

func New(data *ipc.SoundIpcData, cfg config.SoundConfig) *Agent {
	return &Agent{
		data:     data,
		cfg:      cfg,
		nowMS:    ipc.NowMS,
		mixer:    &AlsaMixer{Control: cfg.MixerControl},
		controls: queue.New[controlUpdate](),
	}
}

// advance publishes next unless the agent already sits in an absorbing error
// state. Forward start-up transitions and entries into DISABLED or an error
// state are allowed; backward moves are dropped.
func (a *Agent) advance(next ipc.SoundState) bool {
	status := &a.data.ClientToServer
	cur := status.State()
	if cur.Error() {
		return false
	}
	if !next.Error() && next != ipc.SoundDisabled && next <= cur {
		return false
	}
	status.SetState(next)
	log.Info().Str("from", cur.String()).Str("to", next.String()).Msg("sound state")
	return true
}

// startUp walks IDLE -> STARTING_UP -> ENGINE_INIT_READY ->
// RESOURCE_LOAD_READY -> RUNNING, failing into the matching absorbing error
// state when a step cannot complete.
func (a *Agent) startUp() bool {
	a.advance(ipc.SoundStartingUp)

	if err := a.mixer.Probe(); err != nil {
		log.Error().Err(err).Msg("audio mixer unavailable")
		a.advance(ipc.SoundHardwareFailure)
		return false
	}
	a.advance(ipc.SoundEngineInitReady)

	if a.cfg.ResourceDir != "" {
		if _, err := os.Stat(a.cfg.ResourceDir); err != nil {
			log.Error().Err(err).Str("dir", a.cfg.ResourceDir).Msg("sound resources missing")
			a.advance(ipc.SoundResourceMissing)
			return false
		}
	}
	a.advance(ipc.SoundResourceLoadReady)

	a.advance(ipc.SoundRunning)
	a.data.ClientToServer.SetActive(true)
	return true
}

// pollControls pushes a control update whenever the controller's requests
// differ from the last queued pair. The reader clamps volume; the controller
// may write out-of-range values.
func (a *Agent) pollControls() {
	control := &a.data.ServerToClient
	update := controlUpdate{
		Volume: control.MasterVolume(),
		Mute:   control.MuteRequest(),
	}
	if update == a.seen {
		return
	}
	a.seen = update
	a.controls.Push(update)
}

func (a *Agent) applyControl(update controlUpdate) error {
	if update.Volume != a.appliedVolume {
		if err := a.mixer.SetVolume(update.Volume); err != nil {
			return err
		}
	}
	if update.Mute != a.appliedMute {
		if err := a.mixer.SetMute(update.Mute); err != nil {
			return err
		}
	}
	return nil
}

// applyWorker drains control updates until the agent stops. Mute toggles the
// is_active flag; the agent keeps RUNNING state while muted.
func (a *Agent) applyWorker(done chan<- struct{}) {
	defer close(done)
	for {
		update := a.controls.Pop()
		if a.stopped.Load() {
			return
		}
		if update.Volume == a.appliedVolume && update.Mute == a.appliedMute {
			continue
		}
		if err := a.applyControl(update); err != nil {
			log.Error().Err(err).Msg("sound control apply failed")
			continue
		}
		a.appliedVolume = update.Volume
		a.appliedMute = update.Mute
		a.data.ClientToServer.SetActive(!update.Mute)
		log.Info().
			Uint8("volume", update.Volume).
			Bool("mute", update.Mute).
			Msg("sound control applied")
	}
}

// Run beats, applies controls, and blocks until ctx is cancelled. The first
// heartbeat lands before start-up so the controller sees the agent alive even
// when start-up fails into an error state.
func (a *Agent) Run(ctx context.Context) {
	status := &a.data.ClientToServer
	status.Beat(a.nowMS())

	if a.startUp() && a.cfg.InitialVolume > 0 {
		if err := a.mixer.SetVolume(a.cfg.InitialVolume); err != nil {
			log.Error().Err(err).Msg("initial volume apply failed")
		} else {
			a.appliedVolume = a.cfg.InitialVolume
		}
	}
	a.seen = controlUpdate{Volume: a.appliedVolume, Mute: a.appliedMute}

	workerDone := make(chan struct{})
	go a.applyWorker(workerDone)

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()
	controls := time.NewTicker(controlPollInterval)
	defer controls.Stop()

	for {
		select {
		case <-ctx.Done():
			a.stopped.Store(true)
			a.controls.Stop()
			<-workerDone
			status.SetActive(false)
			return
		case <-heartbeat.C:
			status.Beat(a.nowMS())
		case <-controls.C:
			a.pollControls()
		}
	}
}
