package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"satvault/core"
	"satvault/core/types"
	"satvault/crypto"
	"satvault/gateway/middleware"
)

// HistorySource answers per-vault event history queries.
type HistorySource interface {
	VaultHistory(ctx context.Context, owner crypto.Address, id uint64, limit int) ([]types.Event, error)
	Recent(ctx context.Context, limit int) ([]types.Event, error)
}

type Config struct {
	Ledger        *core.Ledger
	History       HistorySource
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// StreamBuffer sizes each websocket subscriber's queue.
	StreamBuffer int
}

type server struct {
	ledger       *core.Ledger
	history      HistorySource
	logger       *slog.Logger
	streamBuffer int
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("routes: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{
		ledger:       cfg.Ledger,
		history:      cfg.History,
		logger:       logger,
		streamBuffer: cfg.StreamBuffer,
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(sr chi.Router) {
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware())
		}
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware())
		}

		sr.Post("/oracles", s.authorizeOracle)
		sr.Delete("/oracles/{address}", s.revokeOracle)
		sr.Post("/prices", s.submitPrice)
		sr.Get("/prices/latest", s.latestPrice)

		sr.Post("/vaults", s.createVault)
		sr.Get("/vaults/{owner}", s.listVaults)
		sr.Get("/vaults/{owner}/{id}", s.getVault)
		sr.Get("/vaults/{owner}/{id}/position", s.vaultPosition)
		sr.Get("/vaults/{owner}/{id}/history", s.vaultHistory)
		sr.Post("/vaults/{owner}/{id}/mint", s.mint)
		sr.Post("/vaults/{owner}/{id}/redeem", s.redeem)
		sr.Post("/vaults/{owner}/{id}/liquidate", s.liquidate)

		sr.Get("/supply", s.totalSupply)
		sr.Get("/stats", s.stats)
		sr.Get("/params", s.params)
		sr.Put("/params/collateralization-ratio", s.setCollateralizationRatio)
		sr.Put("/params/max-mint-limit", s.setMaxMintLimit)
		sr.Put("/params/fees", s.setFees)
		sr.Put("/params/oracle-max-age", s.setOracleMaxAge)
		sr.Put("/params/pauses", s.setPauses)

		sr.Get("/events", s.recentEvents)
		sr.Get("/events/ws", s.streamEvents)
	})

	return r, nil
}

// requireCaller resolves the authenticated caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, codeUnauthenticated, "caller identity required")
		return crypto.Address{}, false
	}
	return caller, true
}

func pathAddress(r *http.Request, name string) (crypto.Address, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return crypto.Address{}, errors.New(name + " is required")
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, errors.New("invalid " + name + " address")
	}
	return addr, nil
}

func pathVault(r *http.Request) (crypto.Address, uint64, error) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		return crypto.Address{}, 0, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil {
		return crypto.Address{}, 0, errors.New("invalid vault id")
	}
	return owner, id, nil
}

func queryLimit(r *http.Request, fallback, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}

func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 10*time.Second)
}
