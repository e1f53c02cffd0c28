package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/greenroad/vehiclectl/internal/ipc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vehiclectl.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadControllerConfig(t *testing.T) {
	path := writeConfig(t, `
status_addr = ":9200"

[gps]
port = "/dev/ttyAMA0"
baudrate = 460800
update_rate_hz = 10
options = ["use_rtk"]
enabled = true

[imu]
port = "/dev/ttyUSB0"
enabled = true
`)
	cfg, err := LoadControllerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StatusAddr != ":9200" {
		t.Fatalf("status_addr = %q, want :9200", cfg.StatusAddr)
	}
	if cfg.GPS.Baudrate != 460800 {
		t.Fatalf("gps baudrate = %d, want 460800", cfg.GPS.Baudrate)
	}
	// Unset fields take defaults.
	if cfg.IMU.Baudrate != 115200 {
		t.Fatalf("imu baudrate = %d, want default 115200", cfg.IMU.Baudrate)
	}
	if cfg.IMU.UpdateRateHz != 10 {
		t.Fatalf("imu update rate = %d, want default 10", cfg.IMU.UpdateRateHz)
	}

	params, err := cfg.GPS.DeviceParams()
	if err != nil {
		t.Fatalf("device params: %v", err)
	}
	if !ipc.HasGpsOption(params.Options, ipc.GpsOptionUseRTK) {
		t.Fatalf("use_rtk not set in option mask %#02x", params.Options)
	}
	if params.Type != ipc.DeviceTypeSerial {
		t.Fatalf("type = %d, want serial", params.Type)
	}
}

func TestLoadControllerConfigDefaultsStatusAddr(t *testing.T) {
	cfg, err := LoadControllerConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StatusAddr != ":9100" {
		t.Fatalf("status_addr = %q, want default :9100", cfg.StatusAddr)
	}
}

func TestEnabledDeviceRequiresPort(t *testing.T) {
	_, err := LoadControllerConfig(writeConfig(t, `
[gps]
enabled = true
`))
	if err == nil {
		t.Fatalf("enabled gps without port accepted")
	}
}

func TestUnknownOptionRejected(t *testing.T) {
	_, err := LoadControllerConfig(writeConfig(t, `
[gps]
port = "/dev/ttyAMA0"
options = ["warp_drive"]
enabled = true
`))
	if err == nil {
		t.Fatalf("unknown option accepted")
	}
}

func TestIMUSaveRestoreMutuallyExclusive(t *testing.T) {
	if _, err := ParseOptions([]string{"imu_save", "imu_restore"}); err == nil {
		t.Fatalf("imu_save+imu_restore accepted")
	}
}

func TestParseOptionsMask(t *testing.T) {
	mask, err := ParseOptions([]string{"use_rtk", "use_dr", "imu_save"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := uint8(ipc.GpsOptionUseRTK) | uint8(ipc.GpsOptionUseDR) | uint8(ipc.GpsOptionIMUSave)
	if mask != want {
		t.Fatalf("mask = %#02x, want %#02x", mask, want)
	}
}

func TestLoadSoundConfigVolumeRange(t *testing.T) {
	path := writeConfig(t, "initial_volume = 180\n")
	if _, err := LoadSoundConfig(path); err == nil {
		t.Fatalf("out-of-range initial_volume accepted")
	}
}
