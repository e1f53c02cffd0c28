// Package config loads the TOML deployment configuration for the domain
// controller and the agents.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ControllerConfig configures the vehiclectl domain controller.
type ControllerConfig struct {
	StatusAddr  string        `toml:"status_addr"`
	CorsOrigins []string      `toml:"cors_origins"`
	GPS         DeviceSection `toml:"gps"`
	IMU         DeviceSection `toml:"imu"`
}

// DeviceSection is one device entry of the controller configuration. Options
// are symbolic flag names resolved to the GPS option bitmask.
type DeviceSection struct {
	Port         string   `toml:"port"`
	Baudrate     uint32   `toml:"baudrate"`
	UpdateRateHz uint16   `toml:"update_rate_hz"`
	Options      []string `toml:"options"`
	Enabled      bool     `toml:"enabled"`
}

// SoundConfig configures the soundctl agent. MixerControl names the ALSA
// simple control the agent drives; empty selects Master.
type SoundConfig struct {
	ResourceDir   string `toml:"resource_dir"`
	InitialVolume uint8  `toml:"initial_volume"`
	MixerControl  string `toml:"mixer_control"`
}

func LoadControllerConfig(path string) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ControllerConfig{}, err
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = ":9100"
	}
	applyDeviceDefaults(&cfg.GPS)
	applyDeviceDefaults(&cfg.IMU)
	if err := ValidateControllerConfig(cfg); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

func LoadSoundConfig(path string) (SoundConfig, error) {
	var cfg SoundConfig
	if err := loadToml(path, &cfg); err != nil {
		return SoundConfig{}, err
	}
	if cfg.InitialVolume > 100 {
		return SoundConfig{}, fmt.Errorf("config: initial_volume %d out of range 0-100", cfg.InitialVolume)
	}
	return cfg, nil
}

func applyDeviceDefaults(d *DeviceSection) {
	if d.Baudrate == 0 {
		d.Baudrate = 115200
	}
	if d.UpdateRateHz == 0 {
		d.UpdateRateHz = 10
	}
}

func ValidateControllerConfig(cfg ControllerConfig) error {
	if err := validateDevice("gps", cfg.GPS); err != nil {
		return err
	}
	if err := validateDevice("imu", cfg.IMU); err != nil {
		return err
	}
	return nil
}

func validateDevice(name string, d DeviceSection) error {
	if d.Enabled && strings.TrimSpace(d.Port) == "" {
		return fmt.Errorf("config: %s enabled without a port", name)
	}
	if _, err := ParseOptions(d.Options); err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
