package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/core/state"
	"satvault/core/types"
	"satvault/crypto"
	"satvault/native/governance"
	"satvault/native/oracle"
	"satvault/native/params"
	"satvault/native/vault"
	"satvault/observability"
	"satvault/storage"
)

var (
	errNilDatabase   = errors.New("ledger: database not configured")
	errAdminMismatch = errors.New("ledger: configured administrator does not match persisted administrator")
)

// Genesis holds the values written when the ledger initialises an empty
// database.
type Genesis struct {
	Admin   crypto.Address
	Oracles []crypto.Address
	Risk    params.RiskParameters
}

// Stats summarises protocol-wide accounting.
type Stats struct {
	TotalSupply         *big.Int `json:"totalSupply"`
	CollateralLocked    uint64   `json:"collateralLocked"`
	CollateralLockedBTC string   `json:"collateralLockedBtc"`
	TreasuryCollateral  uint64   `json:"treasuryCollateral"`
	VaultCounter        uint64   `json:"vaultCounter"`
	Height              uint64   `json:"height"`
	EventSequence       uint64   `json:"eventSequence"`
}

// ParamsView reports the governance state.
type ParamsView struct {
	Admin   crypto.Address        `json:"admin"`
	Oracles []crypto.Address      `json:"oracles"`
	Risk    params.RiskParameters `json:"risk"`
	Pauses  params.Pauses         `json:"pauses"`
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEventStream sets the stream committed events are published to.
func WithEventStream(stream *EventStream) Option {
	return func(l *Ledger) {
		if stream != nil {
			l.stream = stream
		}
	}
}

// Ledger is the consistency boundary for vault state. Mutating operations are
// serialised and run against a staged view of the database that is committed
// in one batch on success and discarded on failure. Events are published only
// after the commit.
type Ledger struct {
	mu     sync.RWMutex
	db     storage.Database
	clock  Clock
	symbol string
	logger *slog.Logger
	stream *EventStream
}

// session binds the engines to one staged state view.
type session struct {
	state      *state.Manager
	oracle     *oracle.Engine
	vaults     *vault.Engine
	governance *governance.Engine
	height     uint64
}

// NewLedger opens the ledger over db. An empty database is initialised from
// genesis; otherwise the persisted administrator must equal genesis.Admin.
func NewLedger(db storage.Database, clock Clock, symbol string, genesis Genesis, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if clock == nil {
		clock = NewManualClock(0)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("ledger: token symbol required")
	}
	l := &Ledger{
		db:     db,
		clock:  clock,
		symbol: symbol,
		logger: slog.Default(),
		stream: NewEventStream(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.initGenesis(genesis); err != nil {
		return nil, err
	}
	l.refreshGauges()
	return l, nil
}

func (l *Ledger) initGenesis(genesis Genesis) error {
	mgr := state.NewManager(l.db)
	admin, ok, err := mgr.Admin()
	if err != nil {
		return err
	}
	if ok {
		if !admin.Equal(genesis.Admin) {
			return fmt.Errorf("%w: persisted %s, configured %s", errAdminMismatch, admin.String(), genesis.Admin.String())
		}
		return nil
	}
	if err := genesis.Risk.Validate(); err != nil {
		return fmt.Errorf("ledger genesis: %w", err)
	}
	if err := mgr.SetAdmin(genesis.Admin); err != nil {
		return fmt.Errorf("ledger genesis: %w", err)
	}
	if err := params.NewStore(mgr).SetRisk(genesis.Risk); err != nil {
		return fmt.Errorf("ledger genesis: %w", err)
	}
	if err := params.NewStore(mgr).SetPauses(params.Pauses{}); err != nil {
		return fmt.Errorf("ledger genesis: %w", err)
	}
	for _, oracleAddr := range genesis.Oracles {
		if oracleAddr.Equal(genesis.Admin) {
			return fmt.Errorf("ledger genesis: %w: administrator cannot be an oracle", coreerrors.ErrInvalidParameters)
		}
		if err := mgr.SetOracle(oracleAddr, true); err != nil {
			return fmt.Errorf("ledger genesis: %w", err)
		}
	}
	if _, err := mgr.AdjustTokenSupply(l.symbol, big.NewInt(0)); err != nil {
		return fmt.Errorf("ledger genesis: %w", err)
	}
	if err := mgr.Commit(); err != nil {
		mgr.Discard()
		return err
	}
	l.logger.Info("ledger initialised",
		slog.String("admin", genesis.Admin.String()),
		slog.Int("oracles", len(genesis.Oracles)),
		slog.String("token", l.symbol))
	return nil
}

func (l *Ledger) newSession(mgr *state.Manager, emitter events.Emitter, height uint64) *session {
	oracleEngine := oracle.NewEngine()
	oracleEngine.SetState(mgr)
	oracleEngine.SetEmitter(emitter)
	oracleEngine.SetBlockHeight(height)

	vaultEngine := vault.NewEngine(l.symbol)
	vaultEngine.SetState(mgr)
	vaultEngine.SetPriceSource(oracleEngine)
	vaultEngine.SetEmitter(emitter)
	vaultEngine.SetBlockHeight(height)

	govEngine := governance.NewEngine()
	govEngine.SetState(mgr)
	govEngine.SetEmitter(emitter)

	return &session{state: mgr, oracle: oracleEngine, vaults: vaultEngine, governance: govEngine, height: height}
}

func (l *Ledger) height(mgr *state.Manager) (uint64, error) {
	height := l.clock.Height()
	last, err := mgr.LastHeight()
	if err != nil {
		return 0, err
	}
	if last > height {
		return last, nil
	}
	return height, nil
}

// execute runs fn under the write lock against a staged state view. All
// writes fn performs are committed together, or none are.
func (l *Ledger) execute(operation string, caller crypto.Address, fn func(*session) error) error {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	mgr := state.NewManager(l.db)
	err := l.run(mgr, fn)
	if err != nil {
		mgr.Discard()
	}
	l.observe(operation, caller, err, time.Since(start))
	return err
}

func (l *Ledger) run(mgr *state.Manager, fn func(*session) error) error {
	height, err := l.height(mgr)
	if err != nil {
		return err
	}
	buf := &events.Buffer{}
	if err := fn(l.newSession(mgr, buf, height)); err != nil {
		return err
	}
	if err := mgr.RecordHeight(height); err != nil {
		return err
	}
	emitted := buf.Events()
	rendered := make([]types.Event, 0, len(emitted))
	for _, evt := range emitted {
		out := events.Render(evt)
		if out == nil {
			continue
		}
		seq, err := mgr.NextEventSequence()
		if err != nil {
			return err
		}
		out.Sequence = seq
		out.Height = height
		rendered = append(rendered, *out)
	}
	if err := mgr.Commit(); err != nil {
		return err
	}
	l.stream.Publish(rendered...)
	l.refreshGaugesLocked()
	return nil
}

func (l *Ledger) observe(operation string, caller crypto.Address, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = coreerrors.Code(err)
	}
	observability.Ledger().Observe(operation, outcome, duration)

	attrs := []any{
		slog.String("operation", operation),
		slog.String("caller", caller.String()),
		slog.Duration("duration", duration),
	}
	switch {
	case err == nil:
		l.logger.Debug("ledger operation committed", attrs...)
	case coreerrors.IsDomain(err):
		l.logger.Info("ledger operation rejected", append(attrs, slog.String("code", outcome), slog.String("error", err.Error()))...)
	default:
		l.logger.Error("ledger operation failed", append(attrs, slog.String("error", err.Error()))...)
	}
}

func (l *Ledger) refreshGauges() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.refreshGaugesLocked()
}

func (l *Ledger) refreshGaugesLocked() {
	stats, err := l.stats(state.NewManager(l.db))
	if err != nil {
		l.logger.Warn("refresh ledger gauges", slog.String("error", err.Error()))
		return
	}
	metrics := observability.Ledger()
	metrics.SetTotals(observability.LedgerTotals{
		Supply:           stats.TotalSupply,
		CollateralLocked: stats.CollateralLocked,
		Treasury:         stats.TreasuryCollateral,
		VaultCounter:     stats.VaultCounter,
	})
	if obs, ok, err := state.NewManager(l.db).LatestPriceObservation(); err == nil && ok {
		metrics.SetPrice(obs.Price)
	}
}

// view runs fn under the read lock against committed state.
func (l *Ledger) view(fn func(*session) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	mgr := state.NewManager(l.db)
	height, err := l.height(mgr)
	if err != nil {
		return err
	}
	return fn(l.newSession(mgr, events.NoopEmitter{}, height))
}

// Events returns the stream committed events are published to.
func (l *Ledger) Events() *EventStream { return l.stream }

// Symbol returns the minted token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// AuthorizeOracle adds candidate to the price reporter set.
func (l *Ledger) AuthorizeOracle(caller, candidate crypto.Address) error {
	return l.execute("authorize_oracle", caller, func(s *session) error {
		return s.oracle.Authorize(caller, candidate)
	})
}

// RevokeOracle removes candidate from the price reporter set.
func (l *Ledger) RevokeOracle(caller, candidate crypto.Address) error {
	return l.execute("revoke_oracle", caller, func(s *session) error {
		return s.oracle.Revoke(caller, candidate)
	})
}

// SubmitPrice records a price observation from an authorized oracle.
func (l *Ledger) SubmitPrice(caller crypto.Address, price, timestamp uint64) error {
	return l.execute("submit_price", caller, func(s *session) error {
		return s.oracle.SubmitPrice(caller, price, timestamp)
	})
}

// CreateVault opens a vault owned by caller.
func (l *Ledger) CreateVault(caller crypto.Address, collateral uint64) (uint64, error) {
	var id uint64
	err := l.execute("create_vault", caller, func(s *session) error {
		var err error
		id, err = s.vaults.Create(caller, collateral)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Mint increases the debt of a vault owned by caller.
func (l *Ledger) Mint(caller, owner crypto.Address, id, amount uint64) error {
	return l.execute("mint", caller, func(s *session) error {
		return s.vaults.Mint(caller, owner, id, amount)
	})
}

// Redeem repays debt of a vault owned by caller.
func (l *Ledger) Redeem(caller, owner crypto.Address, id, amount uint64) error {
	return l.execute("redeem", caller, func(s *session) error {
		return s.vaults.Redeem(caller, owner, id, amount)
	})
}

// Liquidate closes an unhealthy vault owned by someone other than caller.
func (l *Ledger) Liquidate(caller, owner crypto.Address, id uint64) (*vault.LiquidationResult, error) {
	var result *vault.LiquidationResult
	err := l.execute("liquidate", caller, func(s *session) error {
		var err error
		result, err = s.vaults.Liquidate(caller, owner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetCollateralizationRatio updates the minimum ratio required to mint.
func (l *Ledger) SetCollateralizationRatio(caller crypto.Address, ratio uint64) error {
	return l.execute("set_collateralization_ratio", caller, func(s *session) error {
		return s.governance.SetCollateralizationRatio(caller, ratio)
	})
}

// SetMaxMintLimit updates the per-vault debt ceiling.
func (l *Ledger) SetMaxMintLimit(caller crypto.Address, limit uint64) error {
	return l.execute("set_max_mint_limit", caller, func(s *session) error {
		return s.governance.SetMaxMintLimit(caller, limit)
	})
}

// SetFees records the mint and redemption fees.
func (l *Ledger) SetFees(caller crypto.Address, mintBps, redemptionBps uint64) error {
	return l.execute("set_fees", caller, func(s *session) error {
		return s.governance.SetFees(caller, mintBps, redemptionBps)
	})
}

// SetOracleMaxAge bounds the age of a usable price in blocks.
func (l *Ledger) SetOracleMaxAge(caller crypto.Address, blocks uint64) error {
	return l.execute("set_oracle_max_age", caller, func(s *session) error {
		return s.governance.SetOracleMaxAge(caller, blocks)
	})
}

// SetPauses replaces the per-action pause toggles.
func (l *Ledger) SetPauses(caller crypto.Address, pauses params.Pauses) error {
	return l.execute("set_pauses", caller, func(s *session) error {
		return s.governance.SetPauses(caller, pauses)
	})
}

// LatestPrice returns the current price observation.
func (l *Ledger) LatestPrice() (*types.PriceObservation, error) {
	var obs *types.PriceObservation
	err := l.view(func(s *session) error {
		var err error
		obs, err = s.oracle.Latest()
		return err
	})
	return obs, err
}

// GetVault returns the vault identified by (owner, id) or nil.
func (l *Ledger) GetVault(owner crypto.Address, id uint64) (*types.Vault, error) {
	var v *types.Vault
	err := l.view(func(s *session) error {
		var err error
		v, err = s.vaults.Get(owner, id)
		return err
	})
	return v, err
}

// ListVaults returns the live vaults of owner ordered by id.
func (l *Ledger) ListVaults(owner crypto.Address) ([]*types.Vault, error) {
	var out []*types.Vault
	err := l.view(func(s *session) error {
		var err error
		out, err = s.vaults.List(owner)
		return err
	})
	return out, err
}

// VaultPosition returns the health view of a vault at the current price.
func (l *Ledger) VaultPosition(owner crypto.Address, id uint64) (*vault.Position, error) {
	var pos *vault.Position
	err := l.view(func(s *session) error {
		var err error
		pos, err = s.vaults.Position(owner, id)
		return err
	})
	return pos, err
}

// TotalSupply returns the outstanding minted supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	var total *big.Int
	err := l.view(func(s *session) error {
		var err error
		total, err = s.state.TokenSupply(l.symbol)
		return err
	})
	return total, err
}

// Params returns the administrator, oracles, risk parameters and pauses.
func (l *Ledger) Params() (*ParamsView, error) {
	var view *ParamsView
	err := l.view(func(s *session) error {
		admin, _, err := s.state.Admin()
		if err != nil {
			return err
		}
		oracles, err := s.state.Oracles()
		if err != nil {
			return err
		}
		store := params.NewStore(s.state)
		risk, err := store.Risk()
		if err != nil {
			return err
		}
		pauses, err := store.Pauses()
		if err != nil {
			return err
		}
		view = &ParamsView{Admin: admin, Oracles: oracles, Risk: risk, Pauses: pauses}
		return nil
	})
	return view, err
}

// Stats returns protocol-wide totals.
func (l *Ledger) Stats() (*Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats(state.NewManager(l.db))
}

func (l *Ledger) stats(mgr *state.Manager) (*Stats, error) {
	supply, err := mgr.TokenSupply(l.symbol)
	if err != nil {
		return nil, err
	}
	locked, err := mgr.CollateralLocked()
	if err != nil {
		return nil, err
	}
	treasury, err := mgr.TreasuryCollateral()
	if err != nil {
		return nil, err
	}
	counter, err := mgr.VaultCounter()
	if err != nil {
		return nil, err
	}
	seq, err := mgr.EventSequence()
	if err != nil {
		return nil, err
	}
	height, err := l.height(mgr)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalSupply:         supply,
		CollateralLocked:    locked,
		CollateralLockedBTC: vault.FormatSats(locked),
		TreasuryCollateral:  treasury,
		VaultCounter:        counter,
		Height:              height,
		EventSequence:       seq,
	}, nil
}
