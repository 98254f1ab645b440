package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"satvault/cmd/internal/passphrase"
	"satvault/config"
	"satvault/core"
	"satvault/core/state"
	"satvault/gateway/middleware"
	"satvault/gateway/routes"
	"satvault/indexer"
	"satvault/observability/logging"
	telemetry "satvault/observability/otel"
	"satvault/storage"
)

const (
	serviceName  = "vaultd"
	adminPassEnv = "SATVAULT_ADMIN_PASS"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the configuration file")
	flag.Parse()
	os.Exit(serve(*configFile))
}

// serve returns the process exit code so deferred cleanup runs before exit.
func serve(configFile string) int {
	passSource := passphrase.NewSource(adminPassEnv, "administrator keystore")
	cfg, err := config.Load(configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", configFile, err)
		return 1
	}

	logger, logCloser := logging.Setup(serviceName, cfg.Environment, logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vaultd stopped", slog.Any("error", err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Resume the block clock from the last committed height so restarts
	// never move the ledger backwards.
	lastHeight, err := state.NewManager(db).LastHeight()
	if err != nil {
		return fmt.Errorf("read last height: %w", err)
	}
	clock := core.NewBlockClock(lastHeight, time.Duration(cfg.BlockIntervalMillis)*time.Millisecond)

	admin, oracles, err := cfg.Genesis.Addresses()
	if err != nil {
		return err
	}
	stream := core.NewEventStream(0)
	ledger, err := core.NewLedger(db, clock, cfg.TokenSymbol, core.Genesis{
		Admin:   admin,
		Oracles: oracles,
		Risk:    cfg.Genesis.RiskParameters(),
	}, core.WithLogger(logger), core.WithEventStream(stream))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	var history routes.HistorySource
	if cfg.Indexer.Enabled {
		store, err := indexer.Open(cfg.Indexer.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		last, err := store.LastSequence(ctx)
		if err != nil {
			return fmt.Errorf("read indexer cursor: %w", err)
		}
		updates, cancel, backlog := stream.Subscribe(ctx, strconv.FormatUint(last, 10), cfg.Indexer.StreamBuffer)
		defer cancel()
		go func() {
			if err := indexer.New(store, logger).Run(ctx, updates, backlog); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("indexer stopped", slog.Any("error", err))
			}
		}()
		history = store
	}

	router, err := routes.New(routes.Config{
		Ledger:  ledger,
		History: history,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.AuthSecret(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		}, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: true,
		}, logger),
		Logger:       logger,
		StreamBuffer: 64,
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	handler := http.Handler(router)
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, serviceName)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening",
			slog.String("address", listener.Addr().String()),
			slog.String("admin", admin.String()),
			slog.String("token", ledger.Symbol()),
			slog.Uint64("height", clock.Height()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("vaultd stopped")
	return nil
}
