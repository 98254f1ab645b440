package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"satvault/core"
	coreerrors "satvault/core/errors"
	"satvault/core/types"
	"satvault/crypto"
	"satvault/gateway/middleware"
	"satvault/native/params"
	"satvault/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

var (
	admin      = addr(1)
	oracle     = addr(2)
	owner      = addr(3)
	liquidator = addr(4)
)

type stubHistory struct {
	events []types.Event
	owner  crypto.Address
	id     uint64
	limit  int
}

func (s *stubHistory) VaultHistory(_ context.Context, owner crypto.Address, id uint64, limit int) ([]types.Event, error) {
	s.owner, s.id, s.limit = owner, id, limit
	return s.events, nil
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]types.Event, error) {
	s.limit = limit
	return s.events, nil
}

type fixture struct {
	ledger  *core.Ledger
	history *stubHistory
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger, err := core.NewLedger(storage.NewMemDB(), core.NewManualClock(1), "VUSD", core.Genesis{
		Admin:   admin,
		Oracles: []crypto.Address{oracle},
		Risk:    params.DefaultRiskParameters(),
	})
	require.NoError(t, err)
	history := &stubHistory{}
	handler, err := New(Config{
		Ledger:        ledger,
		History:       history,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{}, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{}, nil),
	})
	require.NoError(t, err)
	return &fixture{ledger: ledger, history: history, handler: handler}
}

func (f *fixture) do(t *testing.T, method, path string, caller *crypto.Address, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if caller != nil {
		req.Header.Set(middleware.HeaderCaller, caller.String())
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), out), res.Body.String())
}

func errorCode(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	decode(t, res, &body)
	return body.Error.Code
}

func vaultPath(id string, suffix string) string {
	return "/v1/vaults/" + owner.String() + "/" + id + suffix
}

func TestVaultLifecycle(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/v1/prices", &oracle, map[string]uint64{"price": 100, "timestamp": 1})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/vaults", &owner, map[string]uint64{"collateral": 1000})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created vaultResponse
	decode(t, res, &created)
	require.Equal(t, uint64(1), created.ID)
	require.True(t, created.Owner.Equal(owner))

	res = f.do(t, http.MethodPost, vaultPath("1", "/mint"), &owner, map[string]uint64{"amount": 600})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var minted vaultResponse
	decode(t, res, &minted)
	require.Equal(t, uint64(600), minted.Debt)

	res = f.do(t, http.MethodGet, vaultPath("1", "/position"), nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var pos struct {
		Available    uint64 `json:"available"`
		HealthRatio  uint64 `json:"healthRatio"`
		Liquidatable bool   `json:"liquidatable"`
	}
	decode(t, res, &pos)
	require.Equal(t, uint64(66), pos.Available)
	require.Equal(t, uint64(166), pos.HealthRatio)
	require.False(t, pos.Liquidatable)

	res = f.do(t, http.MethodPost, vaultPath("1", "/mint"), &owner, map[string]uint64{"amount": 100})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, coreerrors.CodeUndercollateralized, errorCode(t, res))

	res = f.do(t, http.MethodPost, vaultPath("1", "/redeem"), &owner, map[string]uint64{"amount": 100})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodGet, "/v1/supply", nil, nil)
	var supply supplyResponse
	decode(t, res, &supply)
	require.Equal(t, "VUSD", supply.Token)
	require.Equal(t, "500", supply.Total)

	res = f.do(t, http.MethodPost, vaultPath("1", "/liquidate"), &owner, nil)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, coreerrors.CodeUnauthorizedVaultAction, errorCode(t, res))

	res = f.do(t, http.MethodPost, vaultPath("1", "/liquidate"), &liquidator, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(t, http.MethodPost, "/v1/prices", &oracle, map[string]uint64{"price": 60, "timestamp": 2})
	require.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(t, http.MethodPost, vaultPath("1", "/liquidate"), &liquidator, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, vaultPath("1", ""), nil, nil)
	require.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodGet, "/v1/stats", nil, nil)
	var stats struct {
		TreasuryCollateral uint64 `json:"treasuryCollateral"`
		VaultCounter       uint64 `json:"vaultCounter"`
	}
	decode(t, res, &stats)
	require.Equal(t, uint64(1000), stats.TreasuryCollateral)
	require.Equal(t, uint64(1), stats.VaultCounter)
}

func TestListVaults(t *testing.T) {
	f := newFixture(t)
	for _, collateral := range []uint64{10, 20} {
		res := f.do(t, http.MethodPost, "/v1/vaults", &owner, map[string]uint64{"collateral": collateral})
		require.Equal(t, http.StatusCreated, res.Code)
	}
	res := f.do(t, http.MethodGet, "/v1/vaults/"+owner.String(), nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var list vaultListResponse
	decode(t, res, &list)
	require.Len(t, list.Vaults, 2)
	require.Equal(t, uint64(20), list.Vaults[1].Collateral)

	res = f.do(t, http.MethodGet, "/v1/vaults/not-an-address", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/v1/vaults", nil, map[string]uint64{"collateral": 1})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.do(t, http.MethodPost, "/v1/vaults", &owner, map[string]interface{}{"collateral": 1, "extra": true})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/v1/vaults", &owner, map[string]uint64{"collateral": 0})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, coreerrors.CodeInvalidCollateral, errorCode(t, res))

	res = f.do(t, http.MethodGet, "/v1/prices/latest", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	require.Equal(t, coreerrors.CodeOraclePriceUnavailable, errorCode(t, res))

	res = f.do(t, http.MethodPost, "/v1/prices", &owner, map[string]uint64{"price": 1, "timestamp": 1})
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, coreerrors.CodeNotAuthorized, errorCode(t, res))
}

func TestGovernance(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPut, "/v1/params/collateralization-ratio", &owner, map[string]uint64{"ratio": 200})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, http.MethodPut, "/v1/params/collateralization-ratio", &admin, map[string]uint64{"ratio": 50})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, coreerrors.CodeInvalidParameters, errorCode(t, res))

	res = f.do(t, http.MethodPut, "/v1/params/fees", &admin, map[string]uint64{"mint_fee_bps": 10, "redemption_fee_bps": 25})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var view core.ParamsView
	decode(t, res, &view)
	require.Equal(t, uint64(10), view.Risk.MintFeeBps)
	require.Equal(t, uint64(25), view.Risk.RedemptionFeeBps)

	res = f.do(t, http.MethodPut, "/v1/params/pauses", &admin, map[string]bool{"create": true})
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodPost, "/v1/vaults", &owner, map[string]uint64{"collateral": 1})
	require.Equal(t, http.StatusLocked, res.Code)
	require.Equal(t, coreerrors.CodeModulePaused, errorCode(t, res))

	candidate := addr(9)
	res = f.do(t, http.MethodPost, "/v1/oracles", &admin, map[string]string{"candidate": candidate.String()})
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodDelete, "/v1/oracles/"+candidate.String(), &admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodPost, "/v1/oracles", &admin, map[string]string{"candidate": admin.String()})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestVaultHistory(t *testing.T) {
	f := newFixture(t)
	f.history.events = []types.Event{{Type: "vault.created", Sequence: 1}}

	res := f.do(t, http.MethodGet, vaultPath("4", "/history?limit=5000"), nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Events []types.Event `json:"events"`
	}
	decode(t, res, &body)
	require.Len(t, body.Events, 1)
	require.True(t, f.history.owner.Equal(owner))
	require.Equal(t, uint64(4), f.history.id)
	require.Equal(t, 1000, f.history.limit)

	res = f.do(t, http.MethodGet, "/v1/events", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, 100, f.history.limit)
}

func TestStatusMapping(t *testing.T) {
	cases := map[string]int{
		coreerrors.CodeNotAuthorized:           http.StatusForbidden,
		coreerrors.CodeUnauthorizedVaultAction: http.StatusForbidden,
		coreerrors.CodeInvalidParameters:       http.StatusBadRequest,
		coreerrors.CodeInvalidCollateral:       http.StatusBadRequest,
		coreerrors.CodeInsufficientBalance:     http.StatusConflict,
		coreerrors.CodeUndercollateralized:     http.StatusConflict,
		coreerrors.CodeMintLimitExceeded:       http.StatusConflict,
		coreerrors.CodeLiquidationFailed:       http.StatusUnprocessableEntity,
		coreerrors.CodeOraclePriceUnavailable:  http.StatusServiceUnavailable,
		coreerrors.CodeModulePaused:            http.StatusLocked,
		coreerrors.CodeInternal:                http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, statusFor(code), code)
	}
}

func TestEventStreamWebsocket(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.SubmitPrice(oracle, 100, 1))
	_, err := f.ledger.CreateVault(owner, 1000)
	require.NoError(t, err)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws?cursor=1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	readEvent := func() types.Event {
		msgType, data, err := conn.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, websocket.MessageText, msgType)
		var evt types.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	}

	replayed := readEvent()
	require.Equal(t, "vault.created", replayed.Type)
	require.Equal(t, uint64(2), replayed.Sequence)

	require.NoError(t, f.ledger.AuthorizeOracle(admin, addr(9)))
	live := readEvent()
	require.Equal(t, "oracle.authorized", live.Type)
	require.Equal(t, uint64(3), live.Sequence)
}
