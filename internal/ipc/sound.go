package ipc

import "sync/atomic"

// SoundState is the sound agent's lifecycle state. The first five values are
// a monotonic start-up progression; DISABLED is operator-induced; the error
// states absorb until a process restart.
type SoundState uint32

const (
	SoundIdle SoundState = iota
	SoundStartingUp
	SoundEngineInitReady
	SoundResourceLoadReady
	SoundRunning
	SoundDisabled

	SoundHardwareFailure
	SoundResourceMissing
	SoundMessageBusError
	SoundUnknownError
)

// Error reports whether the state is an absorbing error state.
func (s SoundState) Error() bool {
	return s >= SoundHardwareFailure && s <= SoundUnknownError
}

func (s SoundState) String() string {
	switch s {
	case SoundIdle:
		return "idle"
	case SoundStartingUp:
		return "starting_up"
	case SoundEngineInitReady:
		return "engine_init_ready"
	case SoundResourceLoadReady:
		return "resource_load_ready"
	case SoundRunning:
		return "running"
	case SoundDisabled:
		return "disabled"
	case SoundHardwareFailure:
		return "hardware_failure"
	case SoundResourceMissing:
		return "resource_missing"
	case SoundMessageBusError:
		return "message_bus_error"
	default:
		return "unknown_error"
	}
}

// MaxMasterVolume bounds the controller volume scale.
const MaxMasterVolume = 100

// SoundControl is the controller-to-agent half of the sound channel: 8 bytes.
// The controller writes at will; the agent applies the latest observed values
// with no per-write acknowledgment.
type SoundControl struct {
	masterVolume atomic.Uint32
	muteRequest  atomic.Uint32
}

// SetMasterVolume stores the requested volume. Out-of-range values are passed
// through; readers clamp.
func (c *SoundControl) SetMasterVolume(v uint8) {
	c.masterVolume.Store(uint32(v))
}

// MasterVolume returns the requested volume clamped to 0..100.
func (c *SoundControl) MasterVolume() uint8 {
	v := c.masterVolume.Load()
	if v > MaxMasterVolume {
		return MaxMasterVolume
	}
	return uint8(v)
}

func (c *SoundControl) SetMuteRequest(mute bool) {
	c.muteRequest.Store(boolWord(mute))
}

func (c *SoundControl) MuteRequest() bool {
	return c.muteRequest.Load() != 0
}

// SoundStatus is the agent-to-controller half of the sound channel: 16 bytes,
// heartbeat at offset 8. Only the sound agent writes it.
type SoundStatus struct {
	state     atomic.Uint32
	isActive  atomic.Uint32
	heartbeat atomic.Uint64
}

func (s *SoundStatus) SetState(state SoundState) {
	s.state.Store(uint32(state))
}

// State returns the published state. Values outside the known range read as
// UNKNOWN_ERROR rather than being surfaced raw.
func (s *SoundStatus) State() SoundState {
	v := SoundState(s.state.Load())
	if v > SoundUnknownError {
		return SoundUnknownError
	}
	return v
}

// SetActive flags operational activity orthogonal to the lifecycle state,
// e.g. muted-but-running.
func (s *SoundStatus) SetActive(active bool) {
	s.isActive.Store(boolWord(active))
}

func (s *SoundStatus) Active() bool {
	return s.isActive.Load() != 0
}

// Beat refreshes the liveness timestamp. The agent calls this at least every
// AliveTimeThresholdSound.
func (s *SoundStatus) Beat(nowMS uint64) {
	s.heartbeat.Store(nowMS)
}

func (s *SoundStatus) HeartbeatMS() uint64 {
	return s.heartbeat.Load()
}

// AliveAt classifies the agent as alive iff its heartbeat is no older than
// threshold+margin at nowMS. A heartbeat ahead of nowMS counts as alive.
func (s *SoundStatus) AliveAt(nowMS uint64) bool {
	beat := s.heartbeat.Load()
	if beat >= nowMS {
		return true
	}
	window := uint64((AliveTimeThresholdSound + AliveTimeMargin).Milliseconds())
	return nowMS-beat <= window
}

// SoundIpcData is the bidirectional sound-agent channel: 24 bytes. Each half
// has a single writer process.
type SoundIpcData struct {
	ServerToClient SoundControl
	ClientToServer SoundStatus
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
