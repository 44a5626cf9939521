package container

import (
	"fmt"
	"sync/atomic"
)

// phase is the container state token. It only ever moves forward.
type phase int32

const (
	configuring phase = iota
	locked
)

func (p phase) String() string {
	if p == locked {
		return "locked"
	}
	return "configuring"
}

// lockGuard owns the Configuring → Locked transition. Every configuration
// entry point goes through check; every resolution entry point through lock.
type lockGuard struct {
	state atomic.Int32
}

// check fails with ErrContainerLocked once the container is locked.
func (g *lockGuard) check(op string) error {
	if phase(g.state.Load()) == locked {
		return fmt.Errorf("%w: %s", ErrContainerLocked, op)
	}
	return nil
}

// lock moves the container to Locked. It reports whether this call made the
// transition.
func (g *lockGuard) lock() bool {
	return g.state.CompareAndSwap(int32(configuring), int32(locked))
}

func (g *lockGuard) phase() phase { return phase(g.state.Load()) }
