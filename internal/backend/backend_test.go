package backend

import (
	"sync/atomic"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", Auto, false},
		{" CPU ", CPU, false},
		{"cuda", CUDA, false},
		{"auto", Auto, false},
		{"tpu", "", true},
	}
	for _, tc := range tests {
		got, err := Normalize(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Normalize(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewResolvesCPU(t *testing.T) {
	b, err := New("auto", 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != CPU || b.Workers() != 3 {
		t.Fatalf("unexpected backend %s/%d", b.Name(), b.Workers())
	}
	if _, err := New("cuda", 1); err == nil {
		t.Fatal("expected cuda to be unavailable")
	}
}

func TestLaunchRunsEveryTaskOnce(t *testing.T) {
	for _, workers := range []int{1, 4} {
		b := NewCPU(workers)
		hits := make([]int32, 100)
		b.Launch(len(hits), func(i int) {
			atomic.AddInt32(&hits[i], 1)
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("workers=%d: task %d ran %d times", workers, i, h)
			}
		}
	}
}

func TestCopyTokensAsync(t *testing.T) {
	b := NewCPU(2)
	src := []int64{1, 2, 3}
	dst := b.AllocTokens(3)
	tr := b.CopyTokensAsync(dst, src)
	var hooked atomic.Bool
	tr.OnComplete(func() { hooked.Store(true) })
	tr.Wait()
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d", i, dst[i])
		}
	}
	done := make(chan struct{})
	tr.OnComplete(func() { close(done) })
	<-done
}

func TestCompletedTransfer(t *testing.T) {
	tr := CompletedTransfer()
	select {
	case <-tr.Done():
	default:
		t.Fatal("expected completed transfer")
	}
}

func TestAllocPinnedTokens(t *testing.T) {
	p, err := AllocPinnedTokens(64)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 64 {
		t.Fatalf("len = %d", p.Len())
	}
	for i := range p.Data {
		p.Data[i] = int64(i)
	}
	if p.Data[63] != 63 {
		t.Fatal("buffer not writable")
	}
	if err := p.Free(); err != nil {
		t.Fatal(err)
	}
	empty, err := AllocPinnedTokens(0)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty buffer: %v %d", err, empty.Len())
	}
	if _, err := AllocPinnedTokens(-1); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestAvailable(t *testing.T) {
	if Available() != CPU {
		t.Fatalf("Available() = %q", Available())
	}
}
