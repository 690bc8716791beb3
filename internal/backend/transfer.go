package backend

import "sync"

// Transfer tracks an in-flight asynchronous copy.
type Transfer struct {
	done  chan struct{}
	mu    sync.Mutex
	hooks []func()
	fired bool
}

func newTransfer() *Transfer {
	return &Transfer{done: make(chan struct{})}
}

// CompletedTransfer returns a transfer that is already done.
func CompletedTransfer() *Transfer {
	t := newTransfer()
	t.complete()
	return t
}

// Wait blocks until the copy has landed.
func (t *Transfer) Wait() {
	<-t.done
}

// Done returns a channel closed when the copy has landed.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// OnComplete registers fn to run once the copy has landed. If it already
// has, fn runs immediately on the calling goroutine.
func (t *Transfer) OnComplete(fn func()) {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		fn()
		return
	}
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

func (t *Transfer) complete() {
	t.mu.Lock()
	t.fired = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()
	close(t.done)
	for _, fn := range hooks {
		fn()
	}
}
