package soundagent

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// Mixer applies volume and mute on the platform audio stack.
type Mixer interface {
	Probe() error
	SetVolume(percent uint8) error
	SetMute(mute bool) error
}

// AlsaMixer drives an ALSA simple control through amixer.
type AlsaMixer struct {
	Control string
}

func (m *AlsaMixer) control() string {
	if m.Control == "" {
		return "Master"
	}
	return m.Control
}

// Probe verifies the control exists; run before reporting engine-init ready.
func (m *AlsaMixer) Probe() error {
	return m.run("sget", m.control())
}

func (m *AlsaMixer) SetVolume(percent uint8) error {
	return m.run("sset", m.control(), strconv.Itoa(int(percent))+"%")
}

func (m *AlsaMixer) SetMute(mute bool) error {
	state := "unmute"
	if mute {
		state = "mute"
	}
	return m.run("sset", m.control(), state)
}

func (m *AlsaMixer) run(args ...string) error {
	cmd := exec.Command("amixer", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("soundagent: amixer exit %d: %s",
			exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes()))
	}
	return fmt.Errorf("soundagent: amixer: %w", err)
}
