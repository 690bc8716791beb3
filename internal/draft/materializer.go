// Package draft packs ragged draft token lists into the fixed-width,
// placeholder-padded matrix the verification kernels read.
package draft

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/tensor"
)

// DefaultMaxNumTokens bounds batch_size*max_spec_len for the staging buffer.
const DefaultMaxNumTokens = 32 * 1024

var (
	ErrCapacityExceeded = errors.New("draft batch exceeds staging capacity")
	ErrInvalidToken     = errors.New("invalid draft token id")
	ErrEmptyBatch       = errors.New("empty draft batch")
)

// Materializer owns one pinned staging region reused by every call. Only
// one batch can be in flight at a time: the region stays locked from the
// moment it is filled until its device copy has landed.
type Materializer struct {
	be       backend.Backend
	mu       sync.Mutex
	staging  *backend.PinnedTokens
	capacity int
}

// NewMaterializer allocates a staging region for capacity token ids.
func NewMaterializer(be backend.Backend, capacity int) (*Materializer, error) {
	if capacity <= 0 {
		capacity = DefaultMaxNumTokens
	}
	staging, err := backend.AllocPinnedTokens(capacity)
	if err != nil {
		return nil, fmt.Errorf("allocate staging buffer: %w", err)
	}
	return &Materializer{be: be, staging: staging, capacity: capacity}, nil
}

// Capacity returns the maximum batch_size*max_spec_len accepted.
func (m *Materializer) Capacity() int {
	return m.capacity
}

// Pinned reports whether the staging region is page-locked.
func (m *Materializer) Pinned() bool {
	return m.staging.Locked()
}

// Close releases the staging region once any in-flight copy has landed.
func (m *Materializer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staging.Free()
}

// Batch is a draft matrix whose device copy may still be in flight.
type Batch struct {
	// NumDraftTokens holds each request's actual draft length.
	NumDraftTokens []int
	MaxSpecLen     int

	tokens   tensor.Tokens
	transfer *backend.Transfer
}

// BatchSize returns the number of requests.
func (b *Batch) BatchSize() int {
	return len(b.NumDraftTokens)
}

// Wait blocks until the device copy has landed and returns the
// [batch_size, max_spec_len] matrix.
func (b *Batch) Wait() tensor.Tokens {
	b.transfer.Wait()
	return b.tokens
}

// Materialize packs drafts into the staging region and starts the copy to
// device memory. max_spec_len is the longest draft in this batch. If the
// padded matrix would not fit the staging region, ErrCapacityExceeded is
// returned and nothing is copied.
func (m *Materializer) Materialize(drafts [][]int64) (*Batch, error) {
	batchSize := len(drafts)
	if batchSize == 0 {
		return nil, ErrEmptyBatch
	}
	numDraft := make([]int, batchSize)
	maxSpecLen := 0
	for i, ids := range drafts {
		numDraft[i] = len(ids)
		maxSpecLen = max(maxSpecLen, len(ids))
		for pos, id := range ids {
			if id < 0 {
				return nil, fmt.Errorf("%w: request %d position %d has id %d", ErrInvalidToken, i, pos, id)
			}
		}
	}
	n := batchSize * maxSpecLen
	if n > m.capacity {
		return nil, fmt.Errorf("%w: %d x %d = %d > %d", ErrCapacityExceeded, batchSize, maxSpecLen, n, m.capacity)
	}

	m.mu.Lock()
	staging := m.staging.Data[:n]
	for i := range staging {
		staging[i] = tensor.PlaceholderTokenID
	}
	for i, ids := range drafts {
		copy(staging[i*maxSpecLen:], ids)
	}

	dst := m.be.AllocTokens(n)
	transfer := m.be.CopyTokensAsync(dst, staging)
	transfer.OnComplete(m.mu.Unlock)

	return &Batch{
		NumDraftTokens: numDraft,
		MaxSpecLen:     maxSpecLen,
		tokens:         tensor.NewTokensFromData(batchSize, maxSpecLen, dst),
		transfer:       transfer,
	}, nil
}
