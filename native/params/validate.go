package params

import (
	"fmt"

	coreerrors "satvault/core/errors"
)

// ValidateCollateralizationRatio checks ratio against the governance bounds.
func ValidateCollateralizationRatio(ratio uint64) error {
	if ratio < MinCollateralizationRatio || ratio > MaxCollateralizationRatio {
		return fmt.Errorf("%w: collateralization ratio %d outside [%d, %d]", coreerrors.ErrInvalidParameters, ratio, MinCollateralizationRatio, MaxCollateralizationRatio)
	}
	return nil
}

// ValidateFee checks a basis point fee.
func ValidateFee(name string, bps uint64) error {
	if bps > MaxFeeBps {
		return fmt.Errorf("%w: %s %d exceeds %d bps", coreerrors.ErrInvalidParameters, name, bps, MaxFeeBps)
	}
	return nil
}

// Validate checks every field of the parameter set. It is applied at genesis,
// where the liquidation threshold is fixed, so the initial ratio must not sit
// below it. Later ratio changes are bounded by the range alone.
func (p RiskParameters) Validate() error {
	if p.LiquidationThreshold < MinCollateralizationRatio {
		return fmt.Errorf("%w: liquidation threshold %d below %d", coreerrors.ErrInvalidParameters, p.LiquidationThreshold, MinCollateralizationRatio)
	}
	if err := ValidateCollateralizationRatio(p.CollateralizationRatio); err != nil {
		return err
	}
	if p.CollateralizationRatio < p.LiquidationThreshold {
		return fmt.Errorf("%w: collateralization ratio %d below liquidation threshold %d", coreerrors.ErrInvalidParameters, p.CollateralizationRatio, p.LiquidationThreshold)
	}
	if err := ValidateFee("mint fee", p.MintFeeBps); err != nil {
		return err
	}
	if err := ValidateFee("redemption fee", p.RedemptionFeeBps); err != nil {
		return err
	}
	if p.MaxMintLimit == 0 {
		return fmt.Errorf("%w: max mint limit must be positive", coreerrors.ErrInvalidParameters)
	}
	if p.PriceCeiling == 0 {
		return fmt.Errorf("%w: price ceiling must be positive", coreerrors.ErrInvalidParameters)
	}
	return nil
}
