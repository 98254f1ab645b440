package governance

import (
	"errors"
	"fmt"
	"strconv"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/crypto"
	"satvault/native/params"
)

// Parameter names reported in params.updated events.
const (
	ParamCollateralizationRatio = "collateralization_ratio"
	ParamMaxMintLimit           = "max_mint_limit"
	ParamMintFeeBps             = "mint_fee_bps"
	ParamRedemptionFeeBps       = "redemption_fee_bps"
	ParamOracleMaxAgeBlocks     = "oracle_max_age_blocks"
	ParamPauses                 = "pauses"
)

var (
	errStateNotConfigured = errors.New("governance: state not configured")
	errNoAdmin            = errors.New("governance: administrator not configured")
)

type engineState interface {
	Admin() (crypto.Address, bool, error)
	params.StoreState
}

// Engine applies administrator-issued parameter changes. Every change takes
// effect for the next operation evaluated against state.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine constructs a governance engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(name, previous, value string) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.ParamsUpdated{Name: name, Previous: previous, Value: value})
}

func (e *Engine) authorize(caller crypto.Address) (*params.Store, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	admin, ok, err := e.state.Admin()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoAdmin
	}
	if !admin.Equal(caller) {
		return nil, coreerrors.ErrNotAuthorized
	}
	return params.NewStore(e.state), nil
}

func (e *Engine) updateRisk(caller crypto.Address, apply func(*params.RiskParameters) error) (params.RiskParameters, params.RiskParameters, error) {
	store, err := e.authorize(caller)
	if err != nil {
		return params.RiskParameters{}, params.RiskParameters{}, err
	}
	current, err := store.Risk()
	if err != nil {
		return params.RiskParameters{}, params.RiskParameters{}, err
	}
	next := current
	if err := apply(&next); err != nil {
		return params.RiskParameters{}, params.RiskParameters{}, err
	}
	if err := store.SetRisk(next); err != nil {
		return params.RiskParameters{}, params.RiskParameters{}, err
	}
	return current, next, nil
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// SetCollateralizationRatio updates the minimum ratio required to mint. The
// ratio must lie in [100, 300].
func (e *Engine) SetCollateralizationRatio(caller crypto.Address, ratio uint64) error {
	prev, next, err := e.updateRisk(caller, func(p *params.RiskParameters) error {
		if err := params.ValidateCollateralizationRatio(ratio); err != nil {
			return err
		}
		p.CollateralizationRatio = ratio
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ParamCollateralizationRatio, formatUint(prev.CollateralizationRatio), formatUint(next.CollateralizationRatio))
	return nil
}

// SetMaxMintLimit updates the per-vault debt ceiling.
func (e *Engine) SetMaxMintLimit(caller crypto.Address, limit uint64) error {
	prev, next, err := e.updateRisk(caller, func(p *params.RiskParameters) error {
		if limit == 0 {
			return fmt.Errorf("%w: max mint limit must be positive", coreerrors.ErrInvalidParameters)
		}
		p.MaxMintLimit = limit
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ParamMaxMintLimit, formatUint(prev.MaxMintLimit), formatUint(next.MaxMintLimit))
	return nil
}

// SetFees records the mint and redemption fees in basis points.
func (e *Engine) SetFees(caller crypto.Address, mintBps, redemptionBps uint64) error {
	prev, next, err := e.updateRisk(caller, func(p *params.RiskParameters) error {
		if err := params.ValidateFee("mint fee", mintBps); err != nil {
			return err
		}
		if err := params.ValidateFee("redemption fee", redemptionBps); err != nil {
			return err
		}
		p.MintFeeBps = mintBps
		p.RedemptionFeeBps = redemptionBps
		return nil
	})
	if err != nil {
		return err
	}
	if prev.MintFeeBps != next.MintFeeBps {
		e.emit(ParamMintFeeBps, formatUint(prev.MintFeeBps), formatUint(next.MintFeeBps))
	}
	if prev.RedemptionFeeBps != next.RedemptionFeeBps {
		e.emit(ParamRedemptionFeeBps, formatUint(prev.RedemptionFeeBps), formatUint(next.RedemptionFeeBps))
	}
	return nil
}

// SetOracleMaxAge bounds the age in blocks of a usable price. Zero disables
// the bound.
func (e *Engine) SetOracleMaxAge(caller crypto.Address, blocks uint64) error {
	prev, next, err := e.updateRisk(caller, func(p *params.RiskParameters) error {
		p.OracleMaxAgeBlocks = blocks
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ParamOracleMaxAgeBlocks, formatUint(prev.OracleMaxAgeBlocks), formatUint(next.OracleMaxAgeBlocks))
	return nil
}

// SetPauses replaces the per-action pause toggles.
func (e *Engine) SetPauses(caller crypto.Address, pauses params.Pauses) error {
	store, err := e.authorize(caller)
	if err != nil {
		return err
	}
	prev, err := store.Pauses()
	if err != nil {
		return err
	}
	if err := store.SetPauses(pauses); err != nil {
		return err
	}
	e.emit(ParamPauses, formatPauses(prev), formatPauses(pauses))
	return nil
}

func formatPauses(p params.Pauses) string {
	return fmt.Sprintf("create=%t,mint=%t,redeem=%t,liquidate=%t", p.Create, p.Mint, p.Redeem, p.Liquidate)
}
