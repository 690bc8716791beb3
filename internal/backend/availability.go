package backend

import (
	"errors"
	"strings"
)

var errCUDAUnavailable = errors.New("cuda backend not implemented in this build")

// Has reports whether the named backend can be constructed.
func Has(name string) bool {
	return name == CPU || name == Auto
}

// Available returns a comma-separated list of available backends.
func Available() string {
	entries := []string{CPU}
	if Has(CUDA) {
		entries = append(entries, CUDA)
	}
	return strings.Join(entries, ",")
}
