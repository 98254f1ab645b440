package errors

import stderrors "errors"

var (
	ErrNotAuthorized           = stderrors.New("vault: caller not authorized")
	ErrInsufficientBalance     = stderrors.New("vault: insufficient balance")
	ErrInvalidCollateral       = stderrors.New("vault: invalid collateral amount")
	ErrUndercollateralized     = stderrors.New("vault: position would be undercollateralized")
	ErrOraclePriceUnavailable  = stderrors.New("vault: oracle price unavailable")
	ErrLiquidationFailed       = stderrors.New("vault: vault is not eligible for liquidation")
	ErrMintLimitExceeded       = stderrors.New("vault: mint limit exceeded")
	ErrInvalidParameters       = stderrors.New("vault: invalid parameters")
	ErrUnauthorizedVaultAction = stderrors.New("vault: action not permitted for caller")
	ErrModulePaused            = stderrors.New("vault: action paused")
)

// Code values identify failures on the wire and in metrics.
const (
	CodeNotAuthorized           = "NotAuthorized"
	CodeInsufficientBalance     = "InsufficientBalance"
	CodeInvalidCollateral       = "InvalidCollateral"
	CodeUndercollateralized     = "Undercollateralized"
	CodeOraclePriceUnavailable  = "OraclePriceUnavailable"
	CodeLiquidationFailed       = "LiquidationFailed"
	CodeMintLimitExceeded       = "MintLimitExceeded"
	CodeInvalidParameters       = "InvalidParameters"
	CodeUnauthorizedVaultAction = "UnauthorizedVaultAction"
	CodeModulePaused            = "ModulePaused"
	CodeInternal                = "Internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotAuthorized, CodeNotAuthorized},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrInvalidCollateral, CodeInvalidCollateral},
	{ErrUndercollateralized, CodeUndercollateralized},
	{ErrOraclePriceUnavailable, CodeOraclePriceUnavailable},
	{ErrLiquidationFailed, CodeLiquidationFailed},
	{ErrMintLimitExceeded, CodeMintLimitExceeded},
	{ErrInvalidParameters, CodeInvalidParameters},
	{ErrUnauthorizedVaultAction, CodeUnauthorizedVaultAction},
	{ErrModulePaused, CodeModulePaused},
}

// Code maps err onto its taxonomy code. Nil yields "" and anything outside the
// taxonomy (storage, encoding) yields CodeInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codes {
		if stderrors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// IsDomain reports whether err belongs to the ledger's typed failure set.
func IsDomain(err error) bool {
	code := Code(err)
	return code != "" && code != CodeInternal
}
