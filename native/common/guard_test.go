package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "escrow"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	paused := PauseSet{"escrow": true}
	if err := Guard(paused, "escrow"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(paused, "fees"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	paused["escrow"] = false
	if got := paused.Paused(); len(got) != 0 {
		t.Fatalf("expected no paused modules, got %v", got)
	}
}

func TestReentrancyGuard(t *testing.T) {
	var g ReentrancyGuard
	release, err := g.Enter()
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !g.Held() {
		t.Fatalf("guard should be held")
	}
	if _, err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrant error, got %v", err)
	}
	release()
	if g.Held() {
		t.Fatalf("guard should be released")
	}
	release2, err := g.Enter()
	if err != nil {
		t.Fatalf("re-enter after release: %v", err)
	}
	release2()
}

func TestReentrancyGuardReleasedOnEarlyReturn(t *testing.T) {
	var g ReentrancyGuard
	failing := func() error {
		release, err := g.Enter()
		if err != nil {
			return err
		}
		defer release()
		return errors.New("precondition failed")
	}
	if err := failing(); err == nil {
		t.Fatalf("expected failure")
	}
	if g.Held() {
		t.Fatalf("guard leaked after early return")
	}
}
