package state

import (
	"math/big"
	"testing"

	"satvault/storage"
)

func TestAdjustTokenSupply(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	manager := NewManager(db)

	total, err := manager.TokenSupply("VUSD")
	if err != nil {
		t.Fatalf("initial supply: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("expected zero supply, got %s", total)
	}

	updated, err := manager.AdjustTokenSupply("vusd", big.NewInt(1000))
	if err != nil {
		t.Fatalf("adjust supply: %v", err)
	}
	if updated.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected supply after mint: %s", updated)
	}

	updated, err = manager.AdjustTokenSupply("VUSD", big.NewInt(-250))
	if err != nil {
		t.Fatalf("burn supply: %v", err)
	}
	if updated.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected supply after burn: %s", updated)
	}

	if _, err = manager.AdjustTokenSupply("VUSD", big.NewInt(-1000)); err == nil {
		t.Fatalf("expected underflow protection")
	}
}

func TestTreasuryAndSequence(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	if _, err := manager.CreditTreasuryCollateral(40); err != nil {
		t.Fatalf("credit treasury: %v", err)
	}
	total, err := manager.CreditTreasuryCollateral(2)
	if err != nil {
		t.Fatalf("credit treasury: %v", err)
	}
	if total != 42 {
		t.Fatalf("unexpected treasury balance: %d", total)
	}

	for want := uint64(1); want <= 3; want++ {
		seq, err := manager.NextEventSequence()
		if err != nil {
			t.Fatalf("next sequence: %v", err)
		}
		if seq != want {
			t.Fatalf("sequence = %d, want %d", seq, want)
		}
	}
}
