package state

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"satvault/core/types"
	"satvault/crypto"
)

var (
	vaultPrefix       = []byte("vault:")
	vaultOwnerPrefix  = []byte("vault/owner:")
	vaultCounterKey   = kvKey([]byte("vault/counter"))
	collateralLockKey = kvKey([]byte("vault/collateral-locked"))
)

type storedVault struct {
	Owner      []byte
	ID         uint64
	Collateral uint64
	Debt       uint64
	CreatedAt  uint64
}

func vaultKey(owner []byte, id uint64) []byte {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	return prefixedKey(vaultPrefix, owner, idBytes[:])
}

func vaultOwnerKey(owner []byte) []byte {
	return prefixedKey(vaultOwnerPrefix, owner)
}

func (m *Manager) loadUint(key []byte) (uint64, error) {
	data, err := m.get(key)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (m *Manager) writeUint(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(key, encoded)
}

// VaultCounter returns the highest vault id ever allocated. Zero means no
// vault has been created.
func (m *Manager) VaultCounter() (uint64, error) {
	return m.loadUint(vaultCounterKey)
}

// SetVaultCounter records the highest allocated vault id. The counter never
// moves backwards.
func (m *Manager) SetVaultCounter(id uint64) error {
	current, err := m.VaultCounter()
	if err != nil {
		return err
	}
	if id < current {
		return fmt.Errorf("vault counter cannot decrease from %d to %d", current, id)
	}
	return m.writeUint(vaultCounterKey, id)
}

// Vault loads the vault identified by (owner, id). The boolean reports
// whether the record exists.
func (m *Manager) Vault(owner crypto.Address, id uint64) (*types.Vault, bool, error) {
	data, err := m.get(vaultKey(owner.Bytes(), id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedVault)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("decode vault %d: %w", id, err)
	}
	ownerAddr, err := crypto.AddressFromBytes(stored.Owner)
	if err != nil {
		return nil, false, fmt.Errorf("decode vault %d owner: %w", id, err)
	}
	return &types.Vault{
		Owner:      ownerAddr,
		ID:         stored.ID,
		Collateral: stored.Collateral,
		Debt:       stored.Debt,
		CreatedAt:  stored.CreatedAt,
	}, true, nil
}

// PutVault stores the vault record and indexes it under its owner.
func (m *Manager) PutVault(vault *types.Vault) error {
	if vault == nil {
		return fmt.Errorf("vault must not be nil")
	}
	owner := vault.Owner.Bytes()
	if len(owner) != crypto.AddressLength {
		return fmt.Errorf("vault %d: owner required", vault.ID)
	}
	if vault.ID == 0 {
		return fmt.Errorf("vault id must be positive")
	}
	encoded, err := rlp.EncodeToBytes(&storedVault{
		Owner:      append([]byte(nil), owner...),
		ID:         vault.ID,
		Collateral: vault.Collateral,
		Debt:       vault.Debt,
		CreatedAt:  vault.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := m.put(vaultKey(owner, vault.ID), encoded); err != nil {
		return err
	}
	return m.indexVault(owner, vault.ID)
}

// DeleteVault removes the vault record and its owner index entry.
func (m *Manager) DeleteVault(owner crypto.Address, id uint64) error {
	if err := m.del(vaultKey(owner.Bytes(), id)); err != nil {
		return err
	}
	return m.unindexVault(owner.Bytes(), id)
}

// VaultIDs returns the ids of the live vaults owned by owner in ascending
// order.
func (m *Manager) VaultIDs(owner crypto.Address) ([]uint64, error) {
	return m.ownerIndex(owner.Bytes())
}

func (m *Manager) ownerIndex(owner []byte) ([]uint64, error) {
	data, err := m.get(vaultOwnerKey(owner))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []uint64{}, nil
	}
	var ids []uint64
	if err := rlp.DecodeBytes(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) writeOwnerIndex(owner []byte, ids []uint64) error {
	if len(ids) == 0 {
		return m.del(vaultOwnerKey(owner))
	}
	encoded, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return err
	}
	return m.put(vaultOwnerKey(owner), encoded)
}

func (m *Manager) indexVault(owner []byte, id uint64) error {
	ids, err := m.ownerIndex(owner)
	if err != nil {
		return err
	}
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos < len(ids) && ids[pos] == id {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return m.writeOwnerIndex(owner, ids)
}

func (m *Manager) unindexVault(owner []byte, id uint64) error {
	ids, err := m.ownerIndex(owner)
	if err != nil {
		return err
	}
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos >= len(ids) || ids[pos] != id {
		return nil
	}
	ids = append(ids[:pos], ids[pos+1:]...)
	return m.writeOwnerIndex(owner, ids)
}

// CollateralLocked returns the satoshis held by live vaults.
func (m *Manager) CollateralLocked() (uint64, error) {
	return m.loadUint(collateralLockKey)
}

// AddCollateralLocked increases the locked collateral counter.
func (m *Manager) AddCollateralLocked(amount uint64) (uint64, error) {
	current, err := m.CollateralLocked()
	if err != nil {
		return 0, err
	}
	if current+amount < current {
		return 0, fmt.Errorf("collateral locked overflow")
	}
	updated := current + amount
	if err := m.writeUint(collateralLockKey, updated); err != nil {
		return 0, err
	}
	return updated, nil
}

// ReleaseCollateralLocked decreases the locked collateral counter.
func (m *Manager) ReleaseCollateralLocked(amount uint64) (uint64, error) {
	current, err := m.CollateralLocked()
	if err != nil {
		return 0, err
	}
	if amount > current {
		return 0, fmt.Errorf("collateral locked underflow")
	}
	updated := current - amount
	if err := m.writeUint(collateralLockKey, updated); err != nil {
		return 0, err
	}
	return updated, nil
}
