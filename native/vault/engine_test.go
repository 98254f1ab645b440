package vault

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/core/state"
	"satvault/crypto"
	"satvault/native/params"
	"satvault/storage"
)

const testSymbol = "VUSD"

type fixedPrice struct {
	price uint64
}

func (f *fixedPrice) LatestPrice() (uint64, error) {
	if f.price == 0 {
		return 0, coreerrors.ErrOraclePriceUnavailable
	}
	return f.price, nil
}

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

type fixture struct {
	engine  *Engine
	manager *state.Manager
	prices  *fixedPrice
	buf     *events.Buffer
}

func newFixture(t *testing.T, price uint64) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	prices := &fixedPrice{price: price}
	buf := &events.Buffer{}
	engine := NewEngine(testSymbol)
	engine.SetState(manager)
	engine.SetPriceSource(prices)
	engine.SetEmitter(buf)
	engine.SetBlockHeight(7)
	return &fixture{engine: engine, manager: manager, prices: prices, buf: buf}
}

func (f *fixture) setRisk(t *testing.T, mutate func(*params.RiskParameters)) {
	t.Helper()
	store := params.NewStore(f.manager)
	risk, err := store.Risk()
	require.NoError(t, err)
	mutate(&risk)
	require.NoError(t, store.SetRisk(risk))
}

func (f *fixture) supply(t *testing.T) uint64 {
	t.Helper()
	total, err := f.manager.TokenSupply(testSymbol)
	require.NoError(t, err)
	return total.Uint64()
}

func TestCreate(t *testing.T) {
	f := newFixture(t, 1)
	alice := addr(1)

	_, err := f.engine.Create(alice, 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidCollateral)

	first, err := f.engine.Create(alice, 10)
	require.NoError(t, err)
	second, err := f.engine.Create(addr(2), 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, first)
	require.EqualValues(t, 2, second)

	v, err := f.engine.Get(alice, first)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.EqualValues(t, 10, v.Collateral)
	require.Zero(t, v.Debt)
	require.EqualValues(t, 7, v.CreatedAt)

	missing, err := f.engine.Get(alice, second)
	require.NoError(t, err)
	require.Nil(t, missing)

	locked, err := f.manager.CollateralLocked()
	require.NoError(t, err)
	require.EqualValues(t, 30, locked)

	list, err := f.engine.List(alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCreateAllocatesNextIDAndStopsAtExhaustion(t *testing.T) {
	f := newFixture(t, 1)
	alice := addr(1)

	require.NoError(t, f.manager.SetVaultCounter(41))
	id, err := f.engine.Create(alice, 10)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	require.NoError(t, f.manager.SetVaultCounter(math.MaxUint64))
	_, err = f.engine.Create(alice, 10)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters)

	counter, err := f.manager.VaultCounter()
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), counter)
	list, err := f.engine.List(alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMintReferenceScenario(t *testing.T) {
	f := newFixture(t, 50_000)
	f.setRisk(t, func(p *params.RiskParameters) { p.MaxMintLimit = 1_000_000_000_000 })
	alice := addr(1)
	id, err := f.engine.Create(alice, 100_000_000)
	require.NoError(t, err)

	err = f.engine.Mint(alice, alice, id, 33_333_333_334)
	require.ErrorIs(t, err, coreerrors.ErrUndercollateralized)
	v, _ := f.engine.Get(alice, id)
	require.Zero(t, v.Debt)

	require.NoError(t, f.engine.Mint(alice, alice, id, 33_333_333_333))
	v, _ = f.engine.Get(alice, id)
	require.EqualValues(t, 33_333_333_333, v.Debt)
	require.EqualValues(t, 33_333_333_333, f.supply(t))

	require.ErrorIs(t, f.engine.Mint(alice, alice, id, 1), coreerrors.ErrUndercollateralized)
}

func TestMintLimitExceeded(t *testing.T) {
	f := newFixture(t, 50_000)
	alice := addr(1)
	id, err := f.engine.Create(alice, 100_000_000)
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Mint(alice, alice, id, params.DefaultMaxMintLimit+1), coreerrors.ErrMintLimitExceeded)
	require.NoError(t, f.engine.Mint(alice, alice, id, params.DefaultMaxMintLimit))
	require.ErrorIs(t, f.engine.Mint(alice, alice, id, 1), coreerrors.ErrMintLimitExceeded)
	require.EqualValues(t, params.DefaultMaxMintLimit, f.supply(t))
}

func TestMintValidation(t *testing.T) {
	f := newFixture(t, 150)
	alice, bob := addr(1), addr(2)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	bobID, err := f.engine.Create(bob, 1_000)
	require.NoError(t, err)

	cases := []struct {
		name   string
		caller crypto.Address
		owner  crypto.Address
		id     uint64
		amount uint64
		want   error
	}{
		{"zero id", alice, alice, 0, 1, coreerrors.ErrInvalidParameters},
		{"unallocated id", alice, alice, 99, 1, coreerrors.ErrInvalidParameters},
		{"zero amount", alice, alice, id, 0, coreerrors.ErrInvalidParameters},
		{"not owner", bob, alice, id, 1, coreerrors.ErrUnauthorizedVaultAction},
		{"vault of another owner", alice, alice, bobID, 1, coreerrors.ErrInvalidParameters},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, f.engine.Mint(tc.caller, tc.owner, tc.id, tc.amount), tc.want)
		})
	}

	f.prices.price = 0
	require.ErrorIs(t, f.engine.Mint(alice, alice, id, 1), coreerrors.ErrOraclePriceUnavailable)
	require.Zero(t, f.supply(t))
}

func TestRedeem(t *testing.T) {
	f := newFixture(t, 150)
	alice, bob := addr(1), addr(2)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 600))

	require.ErrorIs(t, f.engine.Redeem(bob, alice, id, 1), coreerrors.ErrUnauthorizedVaultAction)
	require.ErrorIs(t, f.engine.Redeem(alice, alice, id, 0), coreerrors.ErrInvalidParameters)
	require.ErrorIs(t, f.engine.Redeem(alice, alice, id, 601), coreerrors.ErrInsufficientBalance)

	// Redemption ignores price availability.
	f.prices.price = 0
	require.NoError(t, f.engine.Redeem(alice, alice, id, 600))
	v, err := f.engine.Get(alice, id)
	require.NoError(t, err)
	require.NotNil(t, v, "redeeming to zero keeps the vault")
	require.Zero(t, v.Debt)
	require.Zero(t, f.supply(t))
}

func TestRedeemThenMintRestoresDebt(t *testing.T) {
	f := newFixture(t, 150)
	alice := addr(1)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 800))

	require.NoError(t, f.engine.Redeem(alice, alice, id, 300))
	require.NoError(t, f.engine.Mint(alice, alice, id, 300))

	v, _ := f.engine.Get(alice, id)
	require.EqualValues(t, 800, v.Debt, "fees are not applied to mint or redeem")
	require.EqualValues(t, 800, f.supply(t))
}

func TestLiquidateThreshold(t *testing.T) {
	f := newFixture(t, 150)
	alice, keeper := addr(1), addr(2)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 1_000))

	_, err = f.engine.Liquidate(alice, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorizedVaultAction)

	f.prices.price = 125
	_, err = f.engine.Liquidate(keeper, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrLiquidationFailed, "health equal to the threshold is safe")

	f.prices.price = 124
	_, err = f.engine.Liquidate(alice, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorizedVaultAction, "self-liquidation fails regardless of health")

	result, err := f.engine.Liquidate(keeper, alice, id)
	require.NoError(t, err)
	require.EqualValues(t, 1_000, result.Debt)
	require.EqualValues(t, 1_000, result.Collateral)
	require.EqualValues(t, 124, result.HealthRatio)

	v, err := f.engine.Get(alice, id)
	require.NoError(t, err)
	require.Nil(t, v)
	require.Zero(t, f.supply(t))

	treasury, err := f.manager.TreasuryCollateral()
	require.NoError(t, err)
	require.EqualValues(t, 1_000, treasury)
	locked, err := f.manager.CollateralLocked()
	require.NoError(t, err)
	require.Zero(t, locked)

	_, err = f.engine.Liquidate(keeper, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters, "liquidated vaults are gone")

	next, err := f.engine.Create(alice, 5)
	require.NoError(t, err)
	require.NotEqual(t, id, next, "ids are never reused")
}

func TestLiquidateRequiresDebtAndPrice(t *testing.T) {
	f := newFixture(t, 150)
	alice, keeper := addr(1), addr(2)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)

	_, err = f.engine.Liquidate(keeper, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters)

	f.prices.price = 0
	_, err = f.engine.Liquidate(keeper, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrOraclePriceUnavailable)
}

func TestPausedActions(t *testing.T) {
	f := newFixture(t, 150)
	alice, keeper := addr(1), addr(2)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 10))

	require.NoError(t, params.NewStore(f.manager).SetPauses(params.Pauses{Create: true, Mint: true, Redeem: true, Liquidate: true}))
	_, err = f.engine.Create(alice, 1)
	require.ErrorIs(t, err, coreerrors.ErrModulePaused)
	require.ErrorIs(t, f.engine.Mint(alice, alice, id, 1), coreerrors.ErrModulePaused)
	require.ErrorIs(t, f.engine.Redeem(alice, alice, id, 1), coreerrors.ErrModulePaused)
	_, err = f.engine.Liquidate(keeper, alice, id)
	require.ErrorIs(t, err, coreerrors.ErrModulePaused)
}

func TestSupplyEvents(t *testing.T) {
	f := newFixture(t, 150)
	alice := addr(1)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 40))

	evts := f.buf.Events()
	require.Len(t, evts, 3)
	require.Equal(t, events.TypeVaultCreated, evts[0].EventType())
	require.Equal(t, events.TypeVaultMinted, evts[1].EventType())
	supply, ok := evts[2].(events.TokenSupply)
	require.True(t, ok)
	require.Zero(t, supply.Total.Cmp(big.NewInt(40)))
	require.Equal(t, events.SupplyReasonMint, supply.Reason)
}

func TestPosition(t *testing.T) {
	f := newFixture(t, 150)
	alice := addr(1)
	id, err := f.engine.Create(alice, 1_000)
	require.NoError(t, err)
	require.NoError(t, f.engine.Mint(alice, alice, id, 500))

	pos, err := f.engine.Position(alice, id)
	require.NoError(t, err)
	require.EqualValues(t, 1_000, pos.MaxMintable)
	require.EqualValues(t, 500, pos.Available)
	require.EqualValues(t, 300, *pos.HealthRatio)
	require.False(t, pos.Liquidatable)
}
