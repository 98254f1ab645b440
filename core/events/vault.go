package events

import (
	"satvault/core/types"
	"satvault/crypto"
)

const (
	// TypeVaultCreated is emitted when an owner opens a new vault.
	TypeVaultCreated = "vault.created"
	// TypeVaultMinted is emitted when debt is minted against a vault.
	TypeVaultMinted = "vault.minted"
	// TypeVaultRedeemed is emitted when debt is repaid.
	TypeVaultRedeemed = "vault.redeemed"
	// TypeVaultLiquidated is emitted when a third party closes an unhealthy vault.
	TypeVaultLiquidated = "vault.liquidated"
)

// VaultCreated captures a newly opened vault.
type VaultCreated struct {
	Owner      crypto.Address
	VaultID    uint64
	Collateral uint64
	Height     uint64
}

func (VaultCreated) EventType() string { return TypeVaultCreated }

func (e VaultCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultCreated,
		Attributes: map[string]string{
			"owner":      formatAddress(e.Owner),
			"vaultId":    formatUint(e.VaultID),
			"collateral": formatUint(e.Collateral),
			"createdAt":  formatUint(e.Height),
		},
	}
}

// VaultMinted captures a successful mint.
type VaultMinted struct {
	Owner   crypto.Address
	VaultID uint64
	Amount  uint64
	Debt    uint64
	Price   uint64
}

func (VaultMinted) EventType() string { return TypeVaultMinted }

func (e VaultMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultMinted,
		Attributes: map[string]string{
			"owner":   formatAddress(e.Owner),
			"vaultId": formatUint(e.VaultID),
			"amount":  formatUint(e.Amount),
			"debt":    formatUint(e.Debt),
			"price":   formatUint(e.Price),
		},
	}
}

// VaultRedeemed captures a debt repayment.
type VaultRedeemed struct {
	Owner   crypto.Address
	VaultID uint64
	Amount  uint64
	Debt    uint64
}

func (VaultRedeemed) EventType() string { return TypeVaultRedeemed }

func (e VaultRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRedeemed,
		Attributes: map[string]string{
			"owner":   formatAddress(e.Owner),
			"vaultId": formatUint(e.VaultID),
			"amount":  formatUint(e.Amount),
			"debt":    formatUint(e.Debt),
		},
	}
}

// VaultLiquidated captures the closure of an unhealthy vault. Collateral is
// transferred to the protocol treasury.
type VaultLiquidated struct {
	Owner       crypto.Address
	VaultID     uint64
	Liquidator  crypto.Address
	Debt        uint64
	Collateral  uint64
	Price       uint64
	HealthRatio uint64
}

func (VaultLiquidated) EventType() string { return TypeVaultLiquidated }

func (e VaultLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultLiquidated,
		Attributes: map[string]string{
			"owner":       formatAddress(e.Owner),
			"vaultId":     formatUint(e.VaultID),
			"liquidator":  formatAddress(e.Liquidator),
			"debt":        formatUint(e.Debt),
			"collateral":  formatUint(e.Collateral),
			"price":       formatUint(e.Price),
			"healthRatio": formatUint(e.HealthRatio),
		},
	}
}
