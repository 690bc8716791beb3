package backend

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	Auto = "auto"
)

// Backend is the execution substrate the verification kernels run on: a
// parallel launcher plus device-resident token storage reachable through
// asynchronous host-to-device copies.
type Backend interface {
	Name() string
	// Workers reports how many tasks a single launch runs concurrently.
	Workers() int
	// Launch runs fn(i) for every i in [0, n) as independent tasks and
	// returns once all of them have finished. Tasks must not depend on
	// each other.
	Launch(n int, fn func(i int))
	// AllocTokens returns device memory for n token ids.
	AllocTokens(n int) []int64
	// CopyTokensAsync starts copying src into dst and returns immediately.
	// src must not be modified until the returned transfer completes.
	CopyTokensAsync(dst, src []int64) *Transfer
}

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case CPU, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, cpu, or cuda)", backend)
	}
}

// New resolves name to a Backend. workers <= 0 selects GOMAXPROCS.
func New(name string, workers int) (Backend, error) {
	resolved, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	switch resolved {
	case CUDA:
		return nil, errCUDAUnavailable
	default:
		return NewCPU(workers), nil
	}
}
