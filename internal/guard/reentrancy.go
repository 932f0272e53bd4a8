package guard

import (
	"errors"
	"sync"
)

// ErrReentrantCall means a nested invocation was detected while a mutating
// operation was already in flight.
var ErrReentrantCall = errors.New("reentrant call rejected")

// ReentrancyGuard admits exactly one mutating operation at a time. Every
// mutating operation must Enter before touching state and Exit on every
// return path, error paths included. The guard stays held across the
// outbound transfer, so a call arriving from inside a payment callback is
// rejected before it can observe or mutate half-finished state.
//
// Enter never blocks: an operation that would have to wait is overlapping an
// in-flight transfer and is rejected outright. The ledger store and the
// aggregate counters are therefore mutated by exactly one logical operation
// at a time.
type ReentrancyGuard struct {
	mu       sync.Mutex
	inFlight bool
}

func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Enter marks an operation as in flight, rejecting nested or overlapping entry.
func (g *ReentrancyGuard) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return ErrReentrantCall
	}
	g.inFlight = true
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}
