package params

import "math"

const (
	MinCollateralizationRatio     = 100
	MaxCollateralizationRatio     = 300
	DefaultCollateralizationRatio = 150
	DefaultLiquidationThreshold   = 125
	DefaultMintFeeBps             = 50
	DefaultRedemptionFeeBps       = 50
	MaxFeeBps                     = 10_000
	DefaultMaxMintLimit           = 1_000_000
	DefaultPriceCeiling           = 1_000_000_000_000

	// MaxClock is the largest timestamp an oracle may report.
	MaxClock = math.MaxUint32
)

// RiskParameters groups the governance controlled values consulted by the
// vault and oracle engines. Fees are recorded and validated but no balance
// change applies them.
type RiskParameters struct {
	CollateralizationRatio uint64 `json:"collateralizationRatio"`
	LiquidationThreshold   uint64 `json:"liquidationThreshold"`
	MintFeeBps             uint64 `json:"mintFeeBps"`
	RedemptionFeeBps       uint64 `json:"redemptionFeeBps"`
	MaxMintLimit           uint64 `json:"maxMintLimit"`
	// OracleMaxAgeBlocks bounds how many blocks old the latest price may be.
	// Zero disables the staleness check.
	OracleMaxAgeBlocks uint64 `json:"oracleMaxAgeBlocks"`
	PriceCeiling       uint64 `json:"priceCeiling"`
}

// DefaultRiskParameters returns the deployment defaults.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		CollateralizationRatio: DefaultCollateralizationRatio,
		LiquidationThreshold:   DefaultLiquidationThreshold,
		MintFeeBps:             DefaultMintFeeBps,
		RedemptionFeeBps:       DefaultRedemptionFeeBps,
		MaxMintLimit:           DefaultMaxMintLimit,
		PriceCeiling:           DefaultPriceCeiling,
	}
}

// Pauses toggles individual vault actions.
type Pauses struct {
	Create    bool `json:"create"`
	Mint      bool `json:"mint"`
	Redeem    bool `json:"redeem"`
	Liquidate bool `json:"liquidate"`
}

// IsPaused implements common.PauseView.
func (p Pauses) IsPaused(action string) bool {
	switch action {
	case ActionCreate:
		return p.Create
	case ActionMint:
		return p.Mint
	case ActionRedeem:
		return p.Redeem
	case ActionLiquidate:
		return p.Liquidate
	default:
		return false
	}
}
