package state

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	tokenSupplyPrefix = []byte("token/supply/")
	treasuryKey       = kvKey([]byte("treasury/collateral"))
	eventSequenceKey  = kvKey([]byte("events/sequence"))
)

func tokenSupplyKey(symbol string) []byte {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	key := make([]byte, len(tokenSupplyPrefix)+len(normalized))
	copy(key, tokenSupplyPrefix)
	copy(key[len(tokenSupplyPrefix):], normalized)
	return kvKey(key)
}

func (m *Manager) writeTokenSupply(symbol string, total *big.Int) error {
	if m == nil {
		return fmt.Errorf("state manager unavailable")
	}
	if total == nil {
		total = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(total)
	if err != nil {
		return err
	}
	return m.put(tokenSupplyKey(symbol), encoded)
}

// TokenSupply returns the persisted total supply for the provided token. Missing
// entries default to zero.
func (m *Manager) TokenSupply(symbol string) (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("state manager unavailable")
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, fmt.Errorf("token symbol required")
	}
	data, err := m.get(tokenSupplyKey(normalized))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	total := new(big.Int)
	if err := rlp.DecodeBytes(data, total); err != nil {
		return nil, err
	}
	return total, nil
}

// AdjustTokenSupply increments the stored total supply by the supplied delta and
// returns the updated total.
func (m *Manager) AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("state manager unavailable")
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, fmt.Errorf("token symbol required")
	}
	if delta == nil {
		delta = big.NewInt(0)
	}
	current, err := m.TokenSupply(normalized)
	if err != nil {
		return nil, err
	}
	updated := new(big.Int).Add(current, delta)
	if updated.Sign() < 0 {
		return nil, fmt.Errorf("token %s supply underflow", normalized)
	}
	if err := m.writeTokenSupply(normalized, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// TreasuryCollateral returns the satoshis seized by liquidations and held by
// the protocol.
func (m *Manager) TreasuryCollateral() (uint64, error) {
	return m.loadUint(treasuryKey)
}

// CreditTreasuryCollateral adds seized collateral to the treasury.
func (m *Manager) CreditTreasuryCollateral(amount uint64) (uint64, error) {
	current, err := m.TreasuryCollateral()
	if err != nil {
		return 0, err
	}
	if current+amount < current {
		return 0, fmt.Errorf("treasury collateral overflow")
	}
	updated := current + amount
	if err := m.writeUint(treasuryKey, updated); err != nil {
		return 0, err
	}
	return updated, nil
}

// EventSequence returns the sequence number of the last published event.
func (m *Manager) EventSequence() (uint64, error) {
	return m.loadUint(eventSequenceKey)
}

// NextEventSequence reserves and returns the next event sequence number.
func (m *Manager) NextEventSequence() (uint64, error) {
	current, err := m.EventSequence()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.writeUint(eventSequenceKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

var lastHeightKey = kvKey([]byte("chain/height"))

// LastHeight returns the highest block height recorded by a committed
// operation.
func (m *Manager) LastHeight() (uint64, error) {
	return m.loadUint(lastHeightKey)
}

// RecordHeight advances the recorded height. Lower values are ignored.
func (m *Manager) RecordHeight(height uint64) error {
	current, err := m.LastHeight()
	if err != nil {
		return err
	}
	if height <= current {
		return nil
	}
	return m.writeUint(lastHeightKey, height)
}
