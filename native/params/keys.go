package params

const (
	// ParamsKeyRisk stores the vault risk and economic parameters.
	ParamsKeyRisk = "vault/risk"
	// ParamsKeyPauses stores the per-action pause configuration.
	ParamsKeyPauses = "system/pauses"
)

// Action names recognised by the pause guard.
const (
	ActionCreate    = "create"
	ActionMint      = "mint"
	ActionRedeem    = "redeem"
	ActionLiquidate = "liquidate"
)
