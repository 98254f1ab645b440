package common

import (
	"errors"
	"testing"

	coreerrors "satvault/core/errors"
)

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "mint"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pauseSet{"mint": true}, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
	if err := Guard(pauseSet{"mint": true}, "redeem"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	err := Guard(pauseSet{"mint": true}, "mint")
	if !errors.Is(err, coreerrors.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
