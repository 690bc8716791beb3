//go:build linux

package backend

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// AllocPinnedTokens maps an anonymous region large enough for n token ids
// and tries to lock it. A refused mlock (RLIMIT_MEMLOCK) leaves the buffer
// usable but unlocked.
func AllocPinnedTokens(n int) (*PinnedTokens, error) {
	if n < 0 {
		return nil, fmt.Errorf("pinned buffer: negative size %d", n)
	}
	if n == 0 {
		return &PinnedTokens{}, nil
	}
	size := n * int(unsafe.Sizeof(int64(0)))
	raw, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return &PinnedTokens{Data: make([]int64, n)}, nil
	}
	p := &PinnedTokens{
		Data: unsafe.Slice((*int64)(unsafe.Pointer(&raw[0])), n),
		raw:  raw,
	}
	if err := unix.Mlock(raw); err == nil {
		p.locked = true
	}
	return p, nil
}

// Free unlocks and unmaps the buffer. The buffer must not be used after.
func (p *PinnedTokens) Free() error {
	if p == nil || p.raw == nil {
		return nil
	}
	if p.locked {
		_ = unix.Munlock(p.raw)
		p.locked = false
	}
	err := unix.Munmap(p.raw)
	p.raw = nil
	p.Data = nil
	return err
}
