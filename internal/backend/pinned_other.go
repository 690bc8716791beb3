//go:build !linux

package backend

import "fmt"

// AllocPinnedTokens falls back to an ordinary heap buffer on platforms
// without mlock support.
func AllocPinnedTokens(n int) (*PinnedTokens, error) {
	if n < 0 {
		return nil, fmt.Errorf("pinned buffer: negative size %d", n)
	}
	return &PinnedTokens{Data: make([]int64, n)}, nil
}

func (p *PinnedTokens) Free() error {
	if p != nil {
		p.Data = nil
	}
	return nil
}
