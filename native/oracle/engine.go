package oracle

import (
	"errors"
	"fmt"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/core/types"
	"satvault/crypto"
	"satvault/native/params"
)

var (
	errNilState = errors.New("oracle engine: state not configured")
	errNoAdmin  = errors.New("oracle engine: administrator not configured")
)

type engineState interface {
	Admin() (crypto.Address, bool, error)
	IsOracle(addr crypto.Address) (bool, error)
	SetOracle(addr crypto.Address, authorized bool) error
	PutPriceObservation(obs *types.PriceObservation) (bool, error)
	LatestPriceObservation() (*types.PriceObservation, bool, error)
	params.StoreState
}

// Engine manages the oracle authorization set and the latest accepted price.
type Engine struct {
	state   engineState
	emitter events.Emitter
	height  uint64
}

// NewEngine creates an oracle engine with a no-op emitter.
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

// SetBlockHeight records the height used to stamp and age observations.
func (e *Engine) SetBlockHeight(height uint64) { e.height = height }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) requireAdmin(caller crypto.Address) (crypto.Address, error) {
	if e == nil || e.state == nil {
		return crypto.Address{}, errNilState
	}
	admin, ok, err := e.state.Admin()
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, errNoAdmin
	}
	if !admin.Equal(caller) {
		return crypto.Address{}, coreerrors.ErrNotAuthorized
	}
	return admin, nil
}

// Authorize adds candidate to the set of price reporters. Only the
// administrator may call it and the candidate may be neither the caller nor
// the administrator. Authorizing an existing oracle is a no-op.
func (e *Engine) Authorize(caller, candidate crypto.Address) error {
	admin, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	if len(candidate.Bytes()) != crypto.AddressLength || candidate.IsZero() {
		return fmt.Errorf("%w: oracle address required", coreerrors.ErrInvalidParameters)
	}
	if candidate.Equal(admin) || candidate.Equal(caller) {
		return fmt.Errorf("%w: administrator cannot be an oracle", coreerrors.ErrInvalidParameters)
	}
	existing, err := e.state.IsOracle(candidate)
	if err != nil {
		return err
	}
	if existing {
		return nil
	}
	if err := e.state.SetOracle(candidate, true); err != nil {
		return err
	}
	e.emit(events.OracleAuthorized{Oracle: candidate})
	return nil
}

// Revoke removes candidate from the set of price reporters. Previously
// accepted observations remain in effect.
func (e *Engine) Revoke(caller, candidate crypto.Address) error {
	if _, err := e.requireAdmin(caller); err != nil {
		return err
	}
	if len(candidate.Bytes()) != crypto.AddressLength {
		return fmt.Errorf("%w: oracle address required", coreerrors.ErrInvalidParameters)
	}
	existing, err := e.state.IsOracle(candidate)
	if err != nil {
		return err
	}
	if !existing {
		return nil
	}
	if err := e.state.SetOracle(candidate, false); err != nil {
		return err
	}
	e.emit(events.OracleRevoked{Oracle: candidate})
	return nil
}

// SubmitPrice records a price observation from an authorized oracle.
func (e *Engine) SubmitPrice(caller crypto.Address, price, timestamp uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	authorized, err := e.state.IsOracle(caller)
	if err != nil {
		return err
	}
	if !authorized {
		return coreerrors.ErrNotAuthorized
	}
	risk, err := params.NewStore(e.state).Risk()
	if err != nil {
		return err
	}
	if price == 0 {
		return fmt.Errorf("%w: price must be positive", coreerrors.ErrInvalidParameters)
	}
	if price > risk.PriceCeiling {
		return fmt.Errorf("%w: price %d exceeds ceiling %d", coreerrors.ErrInvalidParameters, price, risk.PriceCeiling)
	}
	if timestamp > params.MaxClock {
		return fmt.Errorf("%w: timestamp %d exceeds %d", coreerrors.ErrInvalidParameters, timestamp, uint64(params.MaxClock))
	}
	latest, err := e.state.PutPriceObservation(&types.PriceObservation{
		Price:      price,
		Timestamp:  timestamp,
		Reporter:   caller,
		ReceivedAt: e.height,
	})
	if err != nil {
		return err
	}
	e.emit(events.PriceSubmitted{Oracle: caller, Price: price, Timestamp: timestamp, Latest: latest})
	return nil
}

// Latest returns the observation with the greatest reported timestamp. It
// fails with ErrOraclePriceUnavailable when no price was ever recorded or when
// the observation is older than the configured maximum age.
func (e *Engine) Latest() (*types.PriceObservation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	obs, ok, err := e.state.LatestPriceObservation()
	if err != nil {
		return nil, err
	}
	if !ok || obs == nil || obs.Price == 0 {
		return nil, coreerrors.ErrOraclePriceUnavailable
	}
	risk, err := params.NewStore(e.state).Risk()
	if err != nil {
		return nil, err
	}
	if maxAge := risk.OracleMaxAgeBlocks; maxAge > 0 && e.height > obs.ReceivedAt && e.height-obs.ReceivedAt > maxAge {
		return nil, fmt.Errorf("%w: price received at height %d is stale at %d", coreerrors.ErrOraclePriceUnavailable, obs.ReceivedAt, e.height)
	}
	return obs, nil
}

// LatestPrice returns the current price.
func (e *Engine) LatestPrice() (uint64, error) {
	obs, err := e.Latest()
	if err != nil {
		return 0, err
	}
	return obs.Price, nil
}
