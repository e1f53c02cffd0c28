package config

import (
	"fmt"

	"github.com/greenroad/vehiclectl/internal/ipc"
)

// optionNames maps the configuration's symbolic flag names onto the shared
// GPS option bitmask.
var optionNames = map[string]ipc.GpsOption{
	"use_rtk":     ipc.GpsOptionUseRTK,
	"use_dr":      ipc.GpsOptionUseDR,
	"imu_save":    ipc.GpsOptionIMUSave,
	"imu_restore": ipc.GpsOptionIMURestore,
}

// ParseOptions folds symbolic option names into the option bitmask. imu_save
// and imu_restore cannot be combined.
func ParseOptions(names []string) (uint8, error) {
	var mask uint8
	for _, name := range names {
		opt, ok := optionNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown gps option %q", name)
		}
		mask |= uint8(opt)
	}
	if ipc.HasGpsOption(mask, ipc.GpsOptionIMUSave) && ipc.HasGpsOption(mask, ipc.GpsOptionIMURestore) {
		return 0, fmt.Errorf("imu_save and imu_restore are mutually exclusive")
	}
	return mask, nil
}

// DeviceParams converts a validated device section into the shared-memory
// parameter form.
func (d DeviceSection) DeviceParams() (ipc.DeviceParams, error) {
	mask, err := ParseOptions(d.Options)
	if err != nil {
		return ipc.DeviceParams{}, err
	}
	return ipc.DeviceParams{
		Port:         d.Port,
		Baudrate:     d.Baudrate,
		UpdateRateHz: d.UpdateRateHz,
		Options:      mask,
		Type:         ipc.DeviceTypeSerial,
		Enabled:      d.Enabled,
	}, nil
}
