package core

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "satvault/core/errors"
	"satvault/crypto"
	"satvault/native/params"
	"satvault/storage"
)

func testAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

var (
	adminAddr      = testAddr(1)
	oracleAddr     = testAddr(2)
	ownerAddr      = testAddr(3)
	liquidatorAddr = testAddr(4)
)

type ledgerFixture struct {
	db     *storage.MemDB
	clock  *ManualClock
	ledger *Ledger
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := storage.NewMemDB()
	clock := NewManualClock(10)
	ledger, err := NewLedger(db, clock, "vusd", Genesis{
		Admin:   adminAddr,
		Oracles: []crypto.Address{oracleAddr},
		Risk:    params.DefaultRiskParameters(),
	})
	require.NoError(t, err)
	return &ledgerFixture{db: db, clock: clock, ledger: ledger}
}

func (f *ledgerFixture) requireSupplyMatchesDebt(t *testing.T, owners ...crypto.Address) {
	t.Helper()
	debt := new(big.Int)
	for _, owner := range owners {
		vaults, err := f.ledger.ListVaults(owner)
		require.NoError(t, err)
		for _, v := range vaults {
			debt.Add(debt, new(big.Int).SetUint64(v.Debt))
		}
	}
	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	require.Zero(t, supply.Cmp(debt), "supply %s debt %s", supply, debt)
}

func TestLedgerLifecycle(t *testing.T) {
	f := newLedgerFixture(t)
	require.Equal(t, "VUSD", f.ledger.Symbol())

	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))
	id, err := f.ledger.CreateVault(ownerAddr, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, f.ledger.Mint(ownerAddr, ownerAddr, id, 600))
	f.requireSupplyMatchesDebt(t, ownerAddr)

	pos, err := f.ledger.VaultPosition(ownerAddr, id)
	require.NoError(t, err)
	require.Equal(t, uint64(66), pos.Available)
	require.False(t, pos.Liquidatable)

	require.NoError(t, f.ledger.Redeem(ownerAddr, ownerAddr, id, 100))
	f.requireSupplyMatchesDebt(t, ownerAddr)

	f.clock.Advance(1)
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 60, 2))
	result, err := f.ledger.Liquidate(liquidatorAddr, ownerAddr, id)
	require.NoError(t, err)
	require.Equal(t, uint64(500), result.Debt)
	require.Equal(t, uint64(1000), result.Collateral)
	require.Equal(t, uint64(120), result.HealthRatio)

	v, err := f.ledger.GetVault(ownerAddr, id)
	require.NoError(t, err)
	require.Nil(t, v)
	f.requireSupplyMatchesDebt(t, ownerAddr)

	stats, err := f.ledger.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.TotalSupply.Sign())
	require.Zero(t, stats.CollateralLocked)
	require.Equal(t, uint64(1000), stats.TreasuryCollateral)
	require.Equal(t, uint64(1), stats.VaultCounter)
	require.Equal(t, uint64(11), stats.Height)
}

func TestLedgerFailedOperationLeavesStateUntouched(t *testing.T) {
	f := newLedgerFixture(t)
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))
	id, err := f.ledger.CreateVault(ownerAddr, 1000)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Mint(ownerAddr, ownerAddr, id, 600))
	before := f.db.Snapshot()
	seq := f.ledger.Events().LastSequence()

	err = f.ledger.Mint(ownerAddr, ownerAddr, id, 67)
	require.True(t, errors.Is(err, coreerrors.ErrUndercollateralized), "got %v", err)
	err = f.ledger.Redeem(ownerAddr, ownerAddr, id, 601)
	require.True(t, errors.Is(err, coreerrors.ErrInsufficientBalance), "got %v", err)
	_, err = f.ledger.Liquidate(liquidatorAddr, ownerAddr, id)
	require.True(t, errors.Is(err, coreerrors.ErrLiquidationFailed), "got %v", err)
	err = f.ledger.SetCollateralizationRatio(ownerAddr, 200)
	require.True(t, errors.Is(err, coreerrors.ErrNotAuthorized), "got %v", err)

	require.Equal(t, before, f.db.Snapshot())
	require.Equal(t, seq, f.ledger.Events().LastSequence())
}

func TestLedgerEventsAreSequenced(t *testing.T) {
	f := newLedgerFixture(t)
	updates, cancel, backlog := f.ledger.Events().Subscribe(context.Background(), "", 16)
	defer cancel()
	require.Empty(t, backlog)

	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))
	id, err := f.ledger.CreateVault(ownerAddr, 1000)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Mint(ownerAddr, ownerAddr, id, 10))

	want := []string{"oracle.price", "vault.created", "vault.minted", "token.supply"}
	for i, typ := range want {
		evt := <-updates
		require.Equal(t, typ, evt.Type)
		require.Equal(t, uint64(i+1), evt.Sequence)
		require.Equal(t, uint64(10), evt.Height)
	}

	stats, err := f.ledger.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(len(want)), stats.EventSequence)

	_, _, replay := f.ledger.Events().Subscribe(context.Background(), "2", 1)
	require.Len(t, replay, 2)
	require.Equal(t, uint64(3), replay[0].Sequence)
}

func TestLedgerGovernance(t *testing.T) {
	f := newLedgerFixture(t)
	require.NoError(t, f.ledger.SetCollateralizationRatio(adminAddr, 200))
	require.NoError(t, f.ledger.SetMaxMintLimit(adminAddr, 5000))
	require.NoError(t, f.ledger.SetFees(adminAddr, 10, 20))
	require.NoError(t, f.ledger.SetOracleMaxAge(adminAddr, 5))
	require.NoError(t, f.ledger.SetPauses(adminAddr, params.Pauses{Create: true}))

	view, err := f.ledger.Params()
	require.NoError(t, err)
	require.True(t, view.Admin.Equal(adminAddr))
	require.Len(t, view.Oracles, 1)
	require.Equal(t, uint64(200), view.Risk.CollateralizationRatio)
	require.Equal(t, uint64(5000), view.Risk.MaxMintLimit)
	require.Equal(t, uint64(10), view.Risk.MintFeeBps)
	require.Equal(t, uint64(20), view.Risk.RedemptionFeeBps)
	require.Equal(t, uint64(5), view.Risk.OracleMaxAgeBlocks)
	require.True(t, view.Pauses.Create)

	_, err = f.ledger.CreateVault(ownerAddr, 1)
	require.True(t, errors.Is(err, coreerrors.ErrModulePaused), "got %v", err)
}

func TestLedgerStalePrice(t *testing.T) {
	f := newLedgerFixture(t)
	require.NoError(t, f.ledger.SetOracleMaxAge(adminAddr, 5))
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))

	obs, err := f.ledger.LatestPrice()
	require.NoError(t, err)
	require.Equal(t, uint64(10), obs.ReceivedAt)

	f.clock.Advance(6)
	_, err = f.ledger.LatestPrice()
	require.True(t, errors.Is(err, coreerrors.ErrOraclePriceUnavailable), "got %v", err)
}

func TestLedgerOracleManagement(t *testing.T) {
	f := newLedgerFixture(t)
	candidate := testAddr(9)
	require.NoError(t, f.ledger.AuthorizeOracle(adminAddr, candidate))
	require.NoError(t, f.ledger.SubmitPrice(candidate, 50, 3))
	require.NoError(t, f.ledger.RevokeOracle(adminAddr, candidate))
	err := f.ledger.SubmitPrice(candidate, 50, 4)
	require.True(t, errors.Is(err, coreerrors.ErrNotAuthorized), "got %v", err)
}

func TestLedgerReopen(t *testing.T) {
	db := storage.NewMemDB()
	genesis := Genesis{Admin: adminAddr, Risk: params.DefaultRiskParameters()}
	ledger, err := NewLedger(db, NewManualClock(50), "VUSD", genesis)
	require.NoError(t, err)
	require.NoError(t, ledger.AuthorizeOracle(adminAddr, oracleAddr))

	// A restart with a lagging clock keeps the recorded height.
	reopened, err := NewLedger(db, NewManualClock(0), "VUSD", genesis)
	require.NoError(t, err)
	stats, err := reopened.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(50), stats.Height)
	view, err := reopened.Params()
	require.NoError(t, err)
	require.Len(t, view.Oracles, 1)

	genesis.Admin = testAddr(7)
	_, err = NewLedger(db, NewManualClock(0), "VUSD", genesis)
	require.ErrorIs(t, err, errAdminMismatch)
}

func TestLedgerGenesisValidation(t *testing.T) {
	risk := params.DefaultRiskParameters()
	risk.CollateralizationRatio = 99
	_, err := NewLedger(storage.NewMemDB(), nil, "VUSD", Genesis{Admin: adminAddr, Risk: risk})
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters)

	_, err = NewLedger(storage.NewMemDB(), nil, "VUSD", Genesis{
		Admin:   adminAddr,
		Oracles: []crypto.Address{adminAddr},
		Risk:    params.DefaultRiskParameters(),
	})
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters)

	_, err = NewLedger(nil, nil, "VUSD", Genesis{})
	require.ErrorIs(t, err, errNilDatabase)
}

func TestLedgerSupplyTracksDebtAcrossOwners(t *testing.T) {
	f := newLedgerFixture(t)
	second, third := testAddr(5), testAddr(6)
	owners := []crypto.Address{ownerAddr, second, third}
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))

	create := func(owner crypto.Address, collateral uint64) uint64 {
		id, err := f.ledger.CreateVault(owner, collateral)
		require.NoError(t, err)
		return id
	}
	first := create(ownerAddr, 1000)
	secondVault := create(second, 2000)
	thirdVault := create(third, 3000)
	extra := create(ownerAddr, 500)
	require.Equal(t, []uint64{1, 2, 3, 4}, []uint64{first, secondVault, thirdVault, extra})

	steps := []struct {
		name string
		run  func() error
	}{
		{"mint first", func() error { return f.ledger.Mint(ownerAddr, ownerAddr, first, 600) }},
		{"mint second", func() error { return f.ledger.Mint(second, second, secondVault, 1000) }},
		{"redeem first", func() error { return f.ledger.Redeem(ownerAddr, ownerAddr, first, 100) }},
		{"mint third", func() error { return f.ledger.Mint(third, third, thirdVault, 1500) }},
		{"mint extra", func() error { return f.ledger.Mint(ownerAddr, ownerAddr, extra, 300) }},
		{"redeem second", func() error { return f.ledger.Redeem(second, second, secondVault, 200) }},
	}
	for _, step := range steps {
		require.NoError(t, step.run(), step.name)
		f.requireSupplyMatchesDebt(t, owners...)
	}

	f.clock.Advance(1)
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 60, 2))
	f.requireSupplyMatchesDebt(t, owners...)

	_, err := f.ledger.Liquidate(liquidatorAddr, second, secondVault)
	require.ErrorIs(t, err, coreerrors.ErrLiquidationFailed)
	f.requireSupplyMatchesDebt(t, owners...)

	result, err := f.ledger.Liquidate(liquidatorAddr, ownerAddr, first)
	require.NoError(t, err)
	require.Equal(t, uint64(500), result.Debt)
	f.requireSupplyMatchesDebt(t, owners...)

	remaining, err := f.ledger.ListVaults(ownerAddr)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, extra, remaining[0].ID)
	require.Equal(t, uint64(300), remaining[0].Debt)

	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, "2600", supply.String())

	require.NoError(t, f.ledger.Redeem(third, third, thirdVault, 1500))
	f.requireSupplyMatchesDebt(t, owners...)

	stats, err := f.ledger.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(2000+3000+500), stats.CollateralLocked)
	require.Equal(t, uint64(1000), stats.TreasuryCollateral)
}

func TestLedgerRatioBelowLiquidationThreshold(t *testing.T) {
	f := newLedgerFixture(t)
	require.NoError(t, f.ledger.SubmitPrice(oracleAddr, 100, 1))
	id, err := f.ledger.CreateVault(ownerAddr, 1000)
	require.NoError(t, err)

	for _, ratio := range []uint64{100, 124, 110} {
		require.NoError(t, f.ledger.SetCollateralizationRatio(adminAddr, ratio), "ratio %d", ratio)
	}
	view, err := f.ledger.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(110), view.Risk.CollateralizationRatio)
	require.EqualValues(t, params.DefaultLiquidationThreshold, view.Risk.LiquidationThreshold)

	// 1000 * 100 / 110 = 909
	require.NoError(t, f.ledger.Mint(ownerAddr, ownerAddr, id, 909))
	err = f.ledger.Mint(ownerAddr, ownerAddr, id, 1)
	require.ErrorIs(t, err, coreerrors.ErrUndercollateralized)

	err = f.ledger.SetCollateralizationRatio(adminAddr, 99)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParameters)
}
