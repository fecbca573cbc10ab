package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Interview/internal/adapters/http"
	"github.com/dkeye/Interview/internal/adapters/postgres"
	sigws "github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/ledger"
	"github.com/dkeye/Interview/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("session store unavailable")
	}
	defer closeStore()

	led := ledger.New(store, ledger.Options{
		Workers:      cfg.Ledger.Workers,
		QueueSize:    cfg.Ledger.Queue,
		MaxPending:   cfg.Ledger.MaxPending,
		WriteTimeout: cfg.Store.WriteTimeout,
		DrainTimeout: cfg.Ledger.DrainTimeout,
	}, m)
	if _, err := led.CloseStale(ctx, time.Now().UTC()); err != nil {
		log.Fatal().Err(err).Msg("failed to close stale sessions")
	}

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewTable(),
		Policy:   app.SimplePolicy{},
		Ledger:   led,
		Metrics:  m,
	}
	ctl := sigws.NewSignalWSController(o, sigws.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
		RateLimit:  cfg.Rate.Limit,
		RateBurst:  cfg.Rate.Burst,
		ICEServers: cfg.WebRTCICEServers(),
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Signal:   ctl,
		Rooms:    o.Rooms,
		Sessions: store,
		Metrics:  m,
		Health:   health,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	defer stopLedger()

	var g errgroup.Group
	g.Go(func() error { return led.Run(ledgerCtx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Interview server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			return err
		}
		return nil
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Sockets close with the root context; their cleanup feeds the ledger before it drains.
	if err := ctl.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("signal connections still open")
	}
	stopLedger()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openStore connects the durable store. The service must not accept connections without it.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(context.Context) error, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		log.Warn().Str("module", "main").Msg("using in-memory session store, records are lost on exit")
		return ledger.NewMemStore(), nil, func() {}, nil
	case config.StoreDriverPostgres:
		initCtx, cancel := context.WithTimeout(ctx, cfg.Store.InitTimeout)
		defer cancel()
		s, err := postgres.Connect(initCtx, cfg.Store.DSN, cfg.Store.MaxConns)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s.Ping, s.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
