package crypto

import (
	"context"
	"runtime"
)

// HashPool bounds the number of concurrent Argon2id operations so a burst of
// logins cannot exhaust memory (each hash allocates MemoryKB of scratch space).
// FIFO ordering falls out of the buffered-channel semaphore below.
type HashPool struct {
	sem chan struct{}
}

// NewHashPool creates a pool sized to the number of CPUs, matching the
// spec's "bounded worker pool, size = CPU count" requirement.
func NewHashPool() *HashPool {
	size := runtime.NumCPU()
	if size < 1 {
		size = 1
	}
	return &HashPool{sem: make(chan struct{}, size)}
}

// Do runs fn with a pool slot held, blocking until one is free or ctx is done.
func (p *HashPool) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.sem }()

	return fn()
}
