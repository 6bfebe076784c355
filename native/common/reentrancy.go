package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded entry point is invoked while
// another guarded call on the same component is still running, typically from
// a ledger callback.
var ErrReentrantCall = errors.New("reentrant call")

// ReentrancyGuard is a scoped enter/exit flag. Enter returns the release
// function, which callers defer so every exit path clears the flag.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter marks the guard as held or fails with ErrReentrantCall.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Held reports whether a guarded call is in progress.
func (g *ReentrancyGuard) Held() bool {
	return g.entered.Load()
}
