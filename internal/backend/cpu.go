package backend

import "golang.org/x/sync/errgroup"

// CPUBackend runs kernels as goroutines and treats host memory as device
// memory.
type CPUBackend struct {
	workers int
}

// NewCPU returns a CPU backend running at most workers tasks at once.
func NewCPU(workers int) *CPUBackend {
	if workers < 1 {
		workers = 1
	}
	return &CPUBackend{workers: workers}
}

func (b *CPUBackend) Name() string {
	return CPU
}

func (b *CPUBackend) Workers() int {
	return b.workers
}

func (b *CPUBackend) Launch(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n == 1 || b.workers == 1 {
		for i := range n {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (b *CPUBackend) AllocTokens(n int) []int64 {
	return make([]int64, n)
}

func (b *CPUBackend) CopyTokensAsync(dst, src []int64) *Transfer {
	if len(dst) != len(src) {
		panic("copy: length mismatch")
	}
	t := newTransfer()
	go func() {
		copy(dst, src)
		t.complete()
	}()
	return t
}
