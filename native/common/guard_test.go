package common

import (
	"errors"
	"testing"
)

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "lockers"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	view := pauseSet{"lockers": true}
	if err := Guard(view, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
	if err := Guard(view, "collaterals"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	if err := Guard(view, "lockers"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
