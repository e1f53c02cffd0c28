package shm

import "errors"

var (
	ErrInvalidName    = errors.New("shm: region name must be non-empty and begin with /")
	ErrRegionTooSmall = errors.New("shm: region smaller than record size")
)
