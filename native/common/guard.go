package common

import (
	"errors"
	"fmt"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module currently refuses new work.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is paused in p. A nil view or
// an unnamed module never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" || !p.IsPaused(module) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModulePaused, module)
}

// PauseSet is an in-memory PauseView keyed by module name.
type PauseSet map[string]bool

func (p PauseSet) IsPaused(module string) bool { return p[module] }

// Paused lists the paused modules in no particular order.
func (p PauseSet) Paused() []string {
	out := make([]string, 0, len(p))
	for module, paused := range p {
		if paused {
			out = append(out, module)
		}
	}
	return out
}
