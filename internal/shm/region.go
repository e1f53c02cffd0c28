// Package shm provides typed handles to named POSIX shared-memory regions.
//
// A Region[T] maps a region of exactly unsafe.Sizeof(T) bytes and exposes the
// record in place; cooperating processes coordinate through the record's
// atomic fields, never through locks held inside the region. The process that
// calls Create owns the region name and unlinks it on Close; processes that
// call Open attach without taking on the destroy duty.
package shm

import (
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// shmDir is where the kernel exposes POSIX shared-memory objects on Linux.
// shm_open(3) is equivalent to open(2) under this mount.
const shmDir = "/dev/shm"

// regionMode makes regions world read/write; access control is delegated to
// the host user/namespace policy.
const regionMode = 0o666

// Region is an attached handle to a named shared-memory region holding a
// single record of type T. Exactly one handle system-wide should be the
// owner (created via Create); all other processes attach via Open.
type Region[T any] struct {
	name  string
	fd    int
	data  []byte
	state *T
	owner bool
}

// Create provisions a new region named name, sizes it to the record, maps it
// and zero-fills the record. Any pre-existing region of the same name is
// removed first, best effort. The returned handle is the owner: its Close
// unlinks the name.
func Create[T any](name string) (*Region[T], error) {
	path, err := regionPath(name)
	if err != nil {
		return nil, err
	}

	// A stale region from a previous boot must not leak old field values
	// into the fresh mapping.
	_ = unix.Unlink(path)

	var zero T
	size := int(unsafe.Sizeof(zero))

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, regionMode)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", name, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("shm: size %s: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("shm: map %s: %w", name, err)
	}

	// Ftruncate on a fresh object already yields zero pages, but the create
	// path may have reused a name whose unlink failed. Zeroed bytes are the
	// record's initial state, reserved padding included.
	clear(data)

	log.Debug().Str("region", name).Int("size", size).Msg("shm region created")

	return &Region[T]{
		name:  name,
		fd:    fd,
		data:  data,
		state: (*T)(unsafe.Pointer(&data[0])),
		owner: true,
	}, nil
}

// Open attaches to an existing region named name. It fails if the region does
// not exist or is smaller than the record. The returned handle is a guest:
// its Close unmaps but never unlinks.
func Open[T any](name string) (*Region[T], error) {
	path, err := regionPath(name)
	if err != nil {
		return nil, err
	}

	var zero T
	size := int(unsafe.Sizeof(zero))

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", name, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: stat %s: %w", name, err)
	}
	if st.Size < int64(size) {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: open %s: %w", name, ErrRegionTooSmall)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: map %s: %w", name, err)
	}

	log.Debug().Str("region", name).Int("size", size).Msg("shm region opened")

	return &Region[T]{
		name:  name,
		fd:    fd,
		data:  data,
		state: (*T)(unsafe.Pointer(&data[0])),
	}, nil
}

// State returns the mapped record, or nil once the handle is closed. Mutable
// fields must be accessed through their atomic types; the record must never
// be copied wholesale.
func (r *Region[T]) State() *T {
	return r.state
}

// Name returns the region name the handle was attached with.
func (r *Region[T]) Name() string {
	return r.name
}

// Owner reports whether this handle created the region and will unlink it.
func (r *Region[T]) Owner() bool {
	return r.owner
}

// Attached reports whether the handle currently maps the region.
func (r *Region[T]) Attached() bool {
	return r.state != nil
}

// Close unmaps the region and closes the descriptor. The owner handle
// additionally unlinks the name so the kernel reclaims the backing object
// once the last mapper detaches. Close is idempotent.
func (r *Region[T]) Close() error {
	if r == nil || r.state == nil {
		return nil
	}
	r.state = nil

	var firstErr error
	if err := unix.Munmap(r.data); err != nil {
		firstErr = fmt.Errorf("shm: unmap %s: %w", r.name, err)
	}
	r.data = nil

	if err := unix.Close(r.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm: close %s: %w", r.name, err)
	}
	r.fd = -1

	if r.owner {
		path, _ := regionPath(r.name)
		if err := unix.Unlink(path); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("shm: unlink %s: %w", r.name, err)
			}
		} else {
			log.Debug().Str("region", r.name).Msg("shm region unlinked")
		}
	}
	return firstErr
}

// Unlink removes a region name without attaching to it. Mappings held by
// other processes stay valid until they detach.
func Unlink(name string) error {
	path, err := regionPath(name)
	if err != nil {
		return err
	}
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("shm: unlink %s: %w", name, err)
	}
	return nil
}

func regionPath(name string) (string, error) {
	if len(name) < 2 || name[0] != '/' || strings.ContainsRune(name[1:], '/') {
		return "", ErrInvalidName
	}
	return filepath.Join(shmDir, name[1:]), nil
}
