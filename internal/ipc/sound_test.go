package ipc

import "testing"

func TestMasterVolumeClampedByReader(t *testing.T) {
	var data SoundIpcData
	control := &data.ServerToClient

	control.SetMasterVolume(0)
	if got := control.MasterVolume(); got != 0 {
		t.Fatalf("volume = %d, want 0", got)
	}
	control.SetMasterVolume(100)
	if got := control.MasterVolume(); got != 100 {
		t.Fatalf("volume = %d, want 100", got)
	}
	// Writers may send out-of-range values; readers clamp.
	control.SetMasterVolume(255)
	if got := control.MasterVolume(); got != 100 {
		t.Fatalf("volume = %d, want clamp to 100", got)
	}
}

func TestMuteRequestRoundTrip(t *testing.T) {
	var data SoundIpcData
	control := &data.ServerToClient

	if control.MuteRequest() {
		t.Fatalf("fresh channel requests mute")
	}
	control.SetMuteRequest(true)
	if !control.MuteRequest() {
		t.Fatalf("mute request lost")
	}
	control.SetMuteRequest(false)
	if control.MuteRequest() {
		t.Fatalf("unmute request lost")
	}
}

func TestHeartbeatLivenessBoundary(t *testing.T) {
	var status SoundStatus
	const beat = 1_000_000
	status.Beat(beat)

	// Window is threshold 5000ms plus margin 500ms.
	if !status.AliveAt(beat + 5500) {
		t.Fatalf("heartbeat at exactly the window edge classified dead")
	}
	if status.AliveAt(beat + 5501) {
		t.Fatalf("heartbeat past the window classified alive")
	}
	if !status.AliveAt(beat + 1) {
		t.Fatalf("fresh heartbeat classified dead")
	}
	// A heartbeat ahead of the observer's clock counts as alive.
	if !status.AliveAt(beat - 1) {
		t.Fatalf("future heartbeat classified dead")
	}
}

func TestDeadAgentClassification(t *testing.T) {
	var status SoundStatus
	const h = 50_000
	status.Beat(h)
	if status.AliveAt(h + 6000) {
		t.Fatalf("agent with a 6000ms old heartbeat classified alive")
	}
}

func TestUnknownStateReadsAsSentinel(t *testing.T) {
	var status SoundStatus
	status.state.Store(42)
	if got := status.State(); got != SoundUnknownError {
		t.Fatalf("unknown state code read as %v, want unknown_error", got)
	}
}

func TestSoundStateClasses(t *testing.T) {
	errorStates := []SoundState{
		SoundHardwareFailure, SoundResourceMissing,
		SoundMessageBusError, SoundUnknownError,
	}
	for _, s := range errorStates {
		if !s.Error() {
			t.Fatalf("%v not classified as error state", s)
		}
	}
	for _, s := range []SoundState{SoundIdle, SoundStartingUp, SoundRunning, SoundDisabled} {
		if s.Error() {
			t.Fatalf("%v classified as error state", s)
		}
	}
}

func TestActiveFlagIndependentOfState(t *testing.T) {
	var status SoundStatus
	status.SetState(SoundRunning)
	status.SetActive(false)
	if status.State() != SoundRunning || status.Active() {
		t.Fatalf("muted-but-running not representable")
	}
	status.SetActive(true)
	if !status.Active() {
		t.Fatalf("active flag lost")
	}
}
