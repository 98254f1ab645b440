package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "satvault/core/errors"
	"satvault/core/events"
	"satvault/core/state"
	"satvault/crypto"
	"satvault/native/params"
	"satvault/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

type fixture struct {
	engine  *Engine
	manager *state.Manager
	buf     *events.Buffer
	admin   crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	admin := addr(0xad)
	require.NoError(t, manager.SetAdmin(admin))
	buf := &events.Buffer{}
	engine := NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buf)
	return &fixture{engine: engine, manager: manager, buf: buf, admin: admin}
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	oracle := addr(1)

	require.ErrorIs(t, f.engine.Authorize(addr(2), oracle), coreerrors.ErrNotAuthorized)
	require.ErrorIs(t, f.engine.Authorize(f.admin, f.admin), coreerrors.ErrInvalidParameters)
	require.ErrorIs(t, f.engine.Authorize(f.admin, crypto.Address{}), coreerrors.ErrInvalidParameters)

	require.NoError(t, f.engine.Authorize(f.admin, oracle))
	require.NoError(t, f.engine.Authorize(f.admin, oracle))
	ok, err := f.manager.IsOracle(oracle)
	require.NoError(t, err)
	require.True(t, ok)

	evts := f.buf.Events()
	require.Len(t, evts, 1, "idempotent authorization emits once")
	require.Equal(t, events.TypeOracleAuthorized, evts[0].EventType())
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	oracle := addr(1)
	require.NoError(t, f.engine.Authorize(f.admin, oracle))
	require.ErrorIs(t, f.engine.Revoke(oracle, oracle), coreerrors.ErrNotAuthorized)
	require.NoError(t, f.engine.Revoke(f.admin, oracle))
	require.NoError(t, f.engine.Revoke(f.admin, oracle))
	require.ErrorIs(t, f.engine.SubmitPrice(oracle, 10, 1), coreerrors.ErrNotAuthorized)
}

func TestSubmitPriceValidation(t *testing.T) {
	f := newFixture(t)
	oracle := addr(1)
	require.NoError(t, f.engine.Authorize(f.admin, oracle))

	cases := []struct {
		name      string
		caller    crypto.Address
		price, ts uint64
		want      error
	}{
		{"unauthorized", addr(7), 10, 1, coreerrors.ErrNotAuthorized},
		{"admin is not an oracle", f.admin, 10, 1, coreerrors.ErrNotAuthorized},
		{"zero price", oracle, 0, 1, coreerrors.ErrInvalidParameters},
		{"above ceiling", oracle, params.DefaultPriceCeiling + 1, 1, coreerrors.ErrInvalidParameters},
		{"timestamp overflow", oracle, 10, params.MaxClock + 1, coreerrors.ErrInvalidParameters},
		{"at ceiling", oracle, params.DefaultPriceCeiling, params.MaxClock, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.engine.SubmitPrice(tc.caller, tc.price, tc.ts)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLatestPrice(t *testing.T) {
	f := newFixture(t)
	oracle := addr(1)
	require.NoError(t, f.engine.Authorize(f.admin, oracle))

	_, err := f.engine.LatestPrice()
	require.ErrorIs(t, err, coreerrors.ErrOraclePriceUnavailable)

	f.engine.SetBlockHeight(5)
	require.NoError(t, f.engine.SubmitPrice(oracle, 50_000, 100))
	require.NoError(t, f.engine.SubmitPrice(oracle, 40_000, 90))

	price, err := f.engine.LatestPrice()
	require.NoError(t, err)
	require.EqualValues(t, 50_000, price, "older timestamp must not replace the latest price")

	obs, err := f.engine.Latest()
	require.NoError(t, err)
	require.True(t, obs.Reporter.Equal(oracle))
	require.EqualValues(t, 5, obs.ReceivedAt)
}

func TestLatestPriceStaleness(t *testing.T) {
	f := newFixture(t)
	oracle := addr(1)
	require.NoError(t, f.engine.Authorize(f.admin, oracle))

	risk := params.DefaultRiskParameters()
	risk.OracleMaxAgeBlocks = 10
	require.NoError(t, params.NewStore(f.manager).SetRisk(risk))

	f.engine.SetBlockHeight(100)
	require.NoError(t, f.engine.SubmitPrice(oracle, 50_000, 1))

	f.engine.SetBlockHeight(110)
	_, err := f.engine.LatestPrice()
	require.NoError(t, err)

	f.engine.SetBlockHeight(111)
	_, err = f.engine.LatestPrice()
	require.ErrorIs(t, err, coreerrors.ErrOraclePriceUnavailable)
}
