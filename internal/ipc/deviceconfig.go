package ipc

import "sync/atomic"

// GpsOption is a bitmask of positioning features.
type GpsOption uint8

const (
	GpsOptionNone       GpsOption = 0
	GpsOptionUseRTK     GpsOption = 1 << 0
	GpsOptionUseDR      GpsOption = 1 << 1
	GpsOptionIMUSave    GpsOption = 1 << 2
	GpsOptionIMURestore GpsOption = 1 << 3
)

// HasGpsOption reports whether target's bit is set in options. IMU_SAVE and
// IMU_RESTORE are mutually exclusive by convention; callers enforce that, not
// this helper.
func HasGpsOption(options uint8, target GpsOption) bool {
	return options&uint8(target) != 0
}

// DeviceType identifies the transport a device hangs off. Only SERIAL is
// assigned today.
type DeviceType uint8

const DeviceTypeSerial DeviceType = 1

// Defaults applied to a device slot before the controller overrides them.
const (
	DefaultBaudrate     = 115200
	DefaultUpdateRateHz = 10
)

const portLen = 32

// DeviceConfig is one device slot in the table: 48 bytes, plain fields. It is
// written only by the controller while the table is unpublished and read only
// after the ready gate, so no field is atomic.
type DeviceConfig struct {
	port         [portLen]byte
	baudrate     uint32
	updateRateHz uint16
	option       uint8
	devType      uint8
	enabled      uint8
	reserved     [4]byte
}

// DeviceParams is the process-local view of a device slot.
type DeviceParams struct {
	Port         string
	Baudrate     uint32
	UpdateRateHz uint16
	Options      uint8
	Type         DeviceType
	Enabled      bool
}

// SetPort copies p into the fixed-width port field, truncating to 31 bytes
// and NUL-terminating.
func (c *DeviceConfig) SetPort(p string) {
	n := copy(c.port[:portLen-1], p)
	for i := n; i < portLen; i++ {
		c.port[i] = 0
	}
}

// Port returns the port path up to the first NUL.
func (c *DeviceConfig) Port() string {
	for i, b := range c.port {
		if b == 0 {
			return string(c.port[:i])
		}
	}
	return string(c.port[:portLen-1])
}

// ApplyDefaults resets the slot to its defaulted state: empty port, 115200
// baud, 10 Hz, serial, disabled.
func (c *DeviceConfig) ApplyDefaults() {
	*c = DeviceConfig{
		baudrate:     DefaultBaudrate,
		updateRateHz: DefaultUpdateRateHz,
		devType:      uint8(DeviceTypeSerial),
	}
}

// Set writes p into the slot.
func (c *DeviceConfig) Set(p DeviceParams) {
	c.SetPort(p.Port)
	c.baudrate = p.Baudrate
	c.updateRateHz = p.UpdateRateHz
	c.option = p.Options
	c.devType = uint8(p.Type)
	if p.Enabled {
		c.enabled = 1
	} else {
		c.enabled = 0
	}
}

// Params copies the slot out.
func (c *DeviceConfig) Params() DeviceParams {
	return DeviceParams{
		Port:         c.Port(),
		Baudrate:     c.baudrate,
		UpdateRateHz: c.updateRateHz,
		Options:      c.option,
		Type:         DeviceType(c.devType),
		Enabled:      c.enabled != 0,
	}
}

// AgentReadiness carries the per-agent acknowledgments back to the
// controller.
type AgentReadiness struct {
	gpsReady atomic.Uint32
	imuReady atomic.Uint32
}

// DeviceConfigTable publishes GPS and IMU parameters from the controller to
// the agents: 112 bytes. The controller fills the plain slots while ready is
// false, then stores ready; the store is the publish barrier for the whole
// table. Agents read their slot only after observing ready and must never see
// it change afterwards — reconfiguration means destroying and re-creating the
// region.
type DeviceConfigTable struct {
	gps DeviceConfig
	imu DeviceConfig

	ready    atomic.Uint32
	status   AgentReadiness
	reserved [4]byte
}

// ApplyDefaults resets both slots. Only valid before Publish.
func (t *DeviceConfigTable) ApplyDefaults() {
	t.gps.ApplyDefaults()
	t.imu.ApplyDefaults()
}

// SetGPS fills the GPS slot. Only valid before Publish.
func (t *DeviceConfigTable) SetGPS(p DeviceParams) {
	t.gps.Set(p)
}

// SetIMU fills the IMU slot. Only valid before Publish.
func (t *DeviceConfigTable) SetIMU(p DeviceParams) {
	t.imu.Set(p)
}

// Publish releases the table to the agents. One-way within a region
// lifetime.
func (t *DeviceConfigTable) Publish() {
	t.ready.Store(1)
}

// Ready reports whether the controller has published the table. Agents poll
// this before touching the device slots.
func (t *DeviceConfigTable) Ready() bool {
	return t.ready.Load() != 0
}

// GPS copies the GPS slot out. Call only after Ready reports true.
func (t *DeviceConfigTable) GPS() DeviceParams {
	return t.gps.Params()
}

// IMU copies the IMU slot out. Call only after Ready reports true.
func (t *DeviceConfigTable) IMU() DeviceParams {
	return t.imu.Params()
}

// AckGPS records that the GPS agent has consumed its parameters.
func (t *DeviceConfigTable) AckGPS() {
	t.status.gpsReady.Store(1)
}

// AckIMU records that the IMU consumer has applied its parameters.
func (t *DeviceConfigTable) AckIMU() {
	t.status.imuReady.Store(1)
}

func (t *DeviceConfigTable) GPSAcked() bool {
	return t.status.gpsReady.Load() != 0
}

func (t *DeviceConfigTable) IMUAcked() bool {
	return t.status.imuReady.Load() != 0
}
