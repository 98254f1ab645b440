package vault

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/core/types"
	"satvault/crypto"
	"satvault/native/common"
	"satvault/native/params"
)

var (
	errNilState  = errors.New("vault engine: state not configured")
	errNilPrices = errors.New("vault engine: price source not configured")
)

type engineState interface {
	VaultCounter() (uint64, error)
	SetVaultCounter(id uint64) error
	Vault(owner crypto.Address, id uint64) (*types.Vault, bool, error)
	PutVault(v *types.Vault) error
	DeleteVault(owner crypto.Address, id uint64) error
	VaultIDs(owner crypto.Address) ([]uint64, error)
	AddCollateralLocked(amount uint64) (uint64, error)
	ReleaseCollateralLocked(amount uint64) (uint64, error)
	CreditTreasuryCollateral(amount uint64) (uint64, error)
	AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error)
	params.StoreState
}

// PriceSource resolves the current collateral price.
type PriceSource interface {
	LatestPrice() (uint64, error)
}

// LiquidationResult describes a closed vault.
type LiquidationResult struct {
	Owner       crypto.Address `json:"owner"`
	VaultID     uint64         `json:"vaultId"`
	Debt        uint64         `json:"debt"`
	Collateral  uint64         `json:"collateral"`
	Price       uint64         `json:"price"`
	HealthRatio uint64         `json:"healthRatio"`
}

// Engine implements vault creation, minting, redemption and liquidation.
type Engine struct {
	state   engineState
	prices  PriceSource
	emitter events.Emitter
	height  uint64
	symbol  string
}

// NewEngine creates a vault engine minting the provided token symbol.
func NewEngine(symbol string) *Engine {
	return &Engine{emitter: events.NoopEmitter{}, symbol: symbol}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPriceSource configures the oracle consulted by mint, liquidate and
// position queries.
func (e *Engine) SetPriceSource(prices PriceSource) { e.prices = prices }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetBlockHeight records the height stamped on newly created vaults.
func (e *Engine) SetBlockHeight(height uint64) { e.height = height }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) guard(action string) error {
	pauses, err := params.NewStore(e.state).Pauses()
	if err != nil {
		return err
	}
	return common.Guard(pauses, action)
}

func (e *Engine) price() (uint64, error) {
	if e.prices == nil {
		return 0, errNilPrices
	}
	return e.prices.LatestPrice()
}

func (e *Engine) checkID(id uint64) error {
	if id == 0 {
		return fmt.Errorf("%w: vault id must be positive", coreerrors.ErrInvalidParameters)
	}
	counter, err := e.state.VaultCounter()
	if err != nil {
		return err
	}
	if id > counter {
		return fmt.Errorf("%w: vault %d was never allocated", coreerrors.ErrInvalidParameters, id)
	}
	return nil
}

func (e *Engine) load(owner crypto.Address, id uint64) (*types.Vault, error) {
	v, ok, err := e.state.Vault(owner, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: vault %d not found for owner", coreerrors.ErrInvalidParameters, id)
	}
	return v, nil
}

func (e *Engine) adjustSupply(delta *big.Int, reason string) error {
	total, err := e.state.AdjustTokenSupply(e.symbol, delta)
	if err != nil {
		return err
	}
	e.emit(events.TokenSupply{Token: e.symbol, Total: total, Delta: delta, Reason: reason})
	return nil
}

// Create opens a vault for caller holding collateral satoshis and returns the
// allocated id.
func (e *Engine) Create(caller crypto.Address, collateral uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if collateral == 0 {
		return 0, coreerrors.ErrInvalidCollateral
	}
	if len(caller.Bytes()) != crypto.AddressLength || caller.IsZero() {
		return 0, fmt.Errorf("%w: owner required", coreerrors.ErrInvalidParameters)
	}
	if err := e.guard(params.ActionCreate); err != nil {
		return 0, err
	}
	counter, err := e.state.VaultCounter()
	if err != nil {
		return 0, err
	}
	if counter == math.MaxUint64 {
		return 0, fmt.Errorf("%w: vault counter exhausted", coreerrors.ErrInvalidParameters)
	}
	// Ids advance by exactly one, well inside the 1000-id allocation window.
	id := counter + 1
	v := &types.Vault{Owner: caller, ID: id, Collateral: collateral, CreatedAt: e.height}
	if err := e.state.SetVaultCounter(id); err != nil {
		return 0, err
	}
	if err := e.state.PutVault(v); err != nil {
		return 0, err
	}
	if _, err := e.state.AddCollateralLocked(collateral); err != nil {
		return 0, err
	}
	e.emit(events.VaultCreated{Owner: caller, VaultID: id, Collateral: collateral, Height: e.height})
	return id, nil
}

// Get returns the vault identified by (owner, id) or nil when it does not
// exist.
func (e *Engine) Get(owner crypto.Address, id uint64) (*types.Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, ok, err := e.state.Vault(owner, id)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// List returns the live vaults owned by owner ordered by id.
func (e *Engine) List(owner crypto.Address) ([]*types.Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ids, err := e.state.VaultIDs(owner)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Vault, 0, len(ids))
	for _, id := range ids {
		v, ok, err := e.state.Vault(owner, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Position returns the health view of a vault at the current price.
func (e *Engine) Position(owner crypto.Address, id uint64) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.load(owner, id)
	if err != nil {
		return nil, err
	}
	price, err := e.price()
	if err != nil {
		return nil, err
	}
	risk, err := params.NewStore(e.state).Risk()
	if err != nil {
		return nil, err
	}
	return buildPosition(v, price, risk.CollateralizationRatio, risk.LiquidationThreshold)
}

// Mint increases the debt of caller's vault by amount.
func (e *Engine) Mint(caller, owner crypto.Address, id, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.checkID(id); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: mint amount must be positive", coreerrors.ErrInvalidParameters)
	}
	if !caller.Equal(owner) {
		return coreerrors.ErrUnauthorizedVaultAction
	}
	if err := e.guard(params.ActionMint); err != nil {
		return err
	}
	v, err := e.load(owner, id)
	if err != nil {
		return err
	}
	price, err := e.price()
	if err != nil {
		return err
	}
	risk, err := params.NewStore(e.state).Risk()
	if err != nil {
		return err
	}
	maxMintable, err := MaxMintable(v.Collateral, price, risk.CollateralizationRatio)
	if err != nil {
		return err
	}
	required := new(uint256.Int).Add(uint256.NewInt(v.Debt), uint256.NewInt(amount))
	if uint256.NewInt(maxMintable).Lt(required) {
		return fmt.Errorf("%w: debt %s exceeds mintable %d", coreerrors.ErrUndercollateralized, required.Dec(), maxMintable)
	}
	if required.Gt(uint256.NewInt(risk.MaxMintLimit)) {
		return fmt.Errorf("%w: debt %s exceeds limit %d", coreerrors.ErrMintLimitExceeded, required.Dec(), risk.MaxMintLimit)
	}
	v.Debt = required.Uint64()
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(events.VaultMinted{Owner: owner, VaultID: id, Amount: amount, Debt: v.Debt, Price: price})
	return e.adjustSupply(new(big.Int).SetUint64(amount), events.SupplyReasonMint)
}

// Redeem repays amount of caller's vault debt. Collateral health is not
// consulted because reducing debt can only improve it.
func (e *Engine) Redeem(caller, owner crypto.Address, id, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.checkID(id); err != nil {
		return err
	}
	if !caller.Equal(owner) {
		return coreerrors.ErrUnauthorizedVaultAction
	}
	if amount == 0 {
		return fmt.Errorf("%w: redeem amount must be positive", coreerrors.ErrInvalidParameters)
	}
	if err := e.guard(params.ActionRedeem); err != nil {
		return err
	}
	v, err := e.load(owner, id)
	if err != nil {
		return err
	}
	if amount > v.Debt {
		return fmt.Errorf("%w: redeem %d exceeds debt %d", coreerrors.ErrInsufficientBalance, amount, v.Debt)
	}
	v.Debt -= amount
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(events.VaultRedeemed{Owner: owner, VaultID: id, Amount: amount, Debt: v.Debt})
	return e.adjustSupply(new(big.Int).Neg(new(big.Int).SetUint64(amount)), events.SupplyReasonBurn)
}

// Liquidate closes an unhealthy vault owned by someone other than caller. The
// vault's debt leaves the supply and its collateral moves to the protocol
// treasury.
func (e *Engine) Liquidate(caller, owner crypto.Address, id uint64) (*LiquidationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.checkID(id); err != nil {
		return nil, err
	}
	if caller.Equal(owner) {
		return nil, fmt.Errorf("%w: owners cannot liquidate their own vault", coreerrors.ErrUnauthorizedVaultAction)
	}
	if err := e.guard(params.ActionLiquidate); err != nil {
		return nil, err
	}
	v, err := e.load(owner, id)
	if err != nil {
		return nil, err
	}
	price, err := e.price()
	if err != nil {
		return nil, err
	}
	health, err := HealthRatio(v.Collateral, price, v.Debt)
	if err != nil {
		return nil, err
	}
	risk, err := params.NewStore(e.state).Risk()
	if err != nil {
		return nil, err
	}
	if health >= risk.LiquidationThreshold {
		return nil, fmt.Errorf("%w: health %d at or above threshold %d", coreerrors.ErrLiquidationFailed, health, risk.LiquidationThreshold)
	}
	if err := e.state.DeleteVault(owner, id); err != nil {
		return nil, err
	}
	if _, err := e.state.ReleaseCollateralLocked(v.Collateral); err != nil {
		return nil, err
	}
	if _, err := e.state.CreditTreasuryCollateral(v.Collateral); err != nil {
		return nil, err
	}
	result := &LiquidationResult{
		Owner:       owner,
		VaultID:     id,
		Debt:        v.Debt,
		Collateral:  v.Collateral,
		Price:       price,
		HealthRatio: health,
	}
	e.emit(events.VaultLiquidated{
		Owner:       owner,
		VaultID:     id,
		Liquidator:  caller,
		Debt:        v.Debt,
		Collateral:  v.Collateral,
		Price:       price,
		HealthRatio: health,
	})
	if err := e.adjustSupply(new(big.Int).Neg(new(big.Int).SetUint64(v.Debt)), events.SupplyReasonLiquidation); err != nil {
		return nil, err
	}
	return result, nil
}
