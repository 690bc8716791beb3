package backend

// PinnedTokens is a host buffer of token ids used as the staging side of
// host-to-device copies. When the platform allows it the pages are locked
// in memory so the copy never faults.
type PinnedTokens struct {
	Data   []int64
	raw    []byte
	locked bool
}

// Locked reports whether the pages backing the buffer are locked.
func (p *PinnedTokens) Locked() bool {
	return p != nil && p.locked
}

// Len returns the capacity of the buffer in token ids.
func (p *PinnedTokens) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}
