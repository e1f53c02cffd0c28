// Package ipc defines the fixed-layout records exchanged between the domain
// controller and the agents over named shared-memory regions.
//
// Every record is plain data padded to 8-byte multiples, and every field that
// more than one process touches is an atomic. Records are accessed in place
// through shm.Region handles; they are never copied across the boundary. Go
// has no byte-wide atomic operations, so byte-sized shared fields occupy
// their slot as an atomic.Uint32, with reserved bytes placed to keep record
// sizes and u64 offsets stable. Stored values stay within u8 range.
package ipc

import "time"

// Well-known region names. Every process in a deployment attaches to these;
// the domain controller creates them, agents open them.
const (
	SoundRegionName        = "/sound_ipc_shm"
	InitTimelineRegionName = "/gr_system_init_timeline"
	DeviceConfigRegionName = "/gr_device_config"
)

// AliveTimeThresholdSound is the longest interval the sound agent may leave
// between heartbeat updates. AliveTimeMargin absorbs scheduling and delivery
// jitter on top of it; a peer is dead once its heartbeat is older than
// threshold+margin.
const (
	AliveTimeThresholdSound = 5000 * time.Millisecond
	AliveTimeMargin         = 500 * time.Millisecond
)

// NowMS returns wall-clock milliseconds since the Unix epoch. All timestamp
// fields in the shared records use this clock, writers and readers alike.
func NowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
