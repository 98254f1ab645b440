package vault

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcutil"
	"github.com/holiman/uint256"

	coreerrors "satvault/core/errors"
	"satvault/core/types"
)

// collateralValue returns collateral*price. Both operands are 64-bit so the
// product always fits in 128 bits.
func collateralValue(collateral, price uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(collateral), uint256.NewInt(price))
}

func saturate(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}

// MaxMintable returns floor(collateral*price/ratio), the largest debt a vault
// may carry under the given collateralization ratio. The result saturates at
// MaxUint64.
func MaxMintable(collateral, price, ratio uint64) (uint64, error) {
	if ratio == 0 {
		return 0, fmt.Errorf("%w: collateralization ratio must be positive", coreerrors.ErrInvalidParameters)
	}
	value := collateralValue(collateral, price)
	return saturate(value.Div(value, uint256.NewInt(ratio))), nil
}

// HealthRatio returns floor(collateral*price/debt). A debt-free vault has no
// defined health and yields ErrInvalidParameters.
func HealthRatio(collateral, price, debt uint64) (uint64, error) {
	if debt == 0 {
		return 0, fmt.Errorf("%w: health undefined for a vault without debt", coreerrors.ErrInvalidParameters)
	}
	value := collateralValue(collateral, price)
	return saturate(value.Div(value, uint256.NewInt(debt))), nil
}

// FormatSats renders a satoshi amount as a BTC string.
func FormatSats(sats uint64) string {
	if sats > math.MaxInt64 {
		return fmt.Sprintf("%d sat", sats)
	}
	return btcutil.Amount(int64(sats)).String()
}

// Position is a read-only health view of a vault at the current price.
type Position struct {
	Vault         *types.Vault `json:"vault"`
	CollateralBTC string       `json:"collateralBtc"`
	Price         uint64       `json:"price"`
	MaxMintable   uint64       `json:"maxMintable"`
	Available     uint64       `json:"available"`
	// HealthRatio is nil while the vault carries no debt.
	HealthRatio  *uint64 `json:"healthRatio,omitempty"`
	Liquidatable bool    `json:"liquidatable"`
}

func buildPosition(v *types.Vault, price, ratio, threshold uint64) (*Position, error) {
	maxMintable, err := MaxMintable(v.Collateral, price, ratio)
	if err != nil {
		return nil, err
	}
	pos := &Position{
		Vault:         v.Clone(),
		CollateralBTC: FormatSats(v.Collateral),
		Price:         price,
		MaxMintable:   maxMintable,
	}
	if maxMintable > v.Debt {
		pos.Available = maxMintable - v.Debt
	}
	if v.Debt > 0 {
		health, err := HealthRatio(v.Collateral, price, v.Debt)
		if err != nil {
			return nil, err
		}
		pos.HealthRatio = &health
		pos.Liquidatable = health < threshold
	}
	return pos, nil
}
