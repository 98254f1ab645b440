package types

import "satvault/crypto"

// Vault is a collateral/debt position keyed by (Owner, ID).
type Vault struct {
	// Owner is the only identity allowed to mint against or redeem from
	// the vault.
	Owner crypto.Address `json:"owner"`
	// ID is allocated from the process-wide vault counter and never reused.
	ID uint64 `json:"id"`
	// Collateral is the locked BTC amount in satoshis.
	Collateral uint64 `json:"collateral"`
	// Debt is the outstanding minted balance.
	Debt uint64 `json:"debt"`
	// CreatedAt records the block height at creation.
	CreatedAt uint64 `json:"createdAt"`
}

// Clone returns a copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	if len(v.Owner.Bytes()) > 0 {
		clone.Owner = crypto.NewAddress(v.Owner.Prefix(), v.Owner.Bytes())
	}
	return &clone
}

// PriceObservation is a price report accepted from an authorized oracle.
type PriceObservation struct {
	// Price is the value of one satoshi of collateral in minted units
	// scaled so that Collateral*Price compares directly against percentage
	// ratios.
	Price     uint64 `json:"price"`
	Timestamp uint64 `json:"timestamp"`
	// Reporter is the oracle that submitted the observation.
	Reporter crypto.Address `json:"reporter"`
	// ReceivedAt is the block height at which the ledger accepted it.
	ReceivedAt uint64 `json:"receivedAt"`
}
