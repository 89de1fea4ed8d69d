package port

import (
	"errors"
	"fmt"
	"sync"

	"github.com/phayes/freeport"
)

var ErrAllocation = errors.New("port allocation failed")

// the OS may hand the same ephemeral port out again once the probing socket
// is closed, so ports still held by this process are skipped
const maxProbes = 16

type Allocator struct {
	mu    sync.Mutex
	held  map[int]struct{}
	probe func() (int, error)
}

func NewAllocator() *Allocator {
	return &Allocator{
		held:  map[int]struct{}{},
		probe: freeport.GetFreePort,
	}
}

// Allocate returns a loopback TCP port that was free a moment ago and is not
// held by another allocation of this Allocator. The probing socket is already
// closed so the target process can bind the port itself.
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var lastErr error
	for i := 0; i < maxProbes; i++ {
		port, err := a.probe()
		if err != nil {
			lastErr = err
			continue
		}
		if _, taken := a.held[port]; taken {
			continue
		}
		a.held[port] = struct{}{}
		return port, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrAllocation, lastErr)
	}
	return 0, fmt.Errorf("%w: no unheld port after %d probes", ErrAllocation, maxProbes)
}

// Release makes the port available to later allocations again.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	delete(a.held, port)
	a.mu.Unlock()
}

// Held reports whether the port is currently held by this allocator.
func (a *Allocator) Held(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.held[port]
	return ok
}

var defaultAllocator = NewAllocator()

// Allocate allocates from the process-wide allocator.
func Allocate() (int, error) {
	return defaultAllocator.Allocate()
}

// Release releases a port taken from the process-wide allocator.
func Release(port int) {
	defaultAllocator.Release(port)
}
