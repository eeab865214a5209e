package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aviatorServer/api"
	"aviatorServer/config"
	"aviatorServer/contract"
	"aviatorServer/db"
	"aviatorServer/engine"
	"aviatorServer/game"
	"aviatorServer/logging"
	"aviatorServer/publisher"
	"aviatorServer/telemetry"
	"aviatorServer/ws"

	"go.uber.org/zap"
)

func main() {
	cfg, dotenvFound, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if dotenvFound {
		logger.Info("✅ Loaded environment variables from .env")
	} else {
		logger.Warn("⚠️ .env file not found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("❌ Server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "aviator-server", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Warn("⚠️ Tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(shutdownCtx)
	}()

	/* =========================
	   STORAGE
	========================= */

	pg, err := db.ConnectPostgres(ctx, cfg.DatabaseURL, logger.Named("postgres"))
	if err != nil {
		logger.Warn("⚠️ PostgreSQL initialization failed", zap.Error(err))
		logger.Warn("   Bets, round history and persisted settings will be disabled")
		pg = nil
	}
	defer pg.Close()

	rdb, err := db.ConnectRedis(ctx, cfg, logger.Named("redis"))
	if err != nil {
		logger.Warn("⚠️ Redis initialization failed", zap.Error(err))
		logger.Warn("   Events will not be relayed to other services")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	/* =========================
	   SETTINGS
	========================= */

	fileOverrides, err := config.LoadSettingsFile(cfg.SettingsFile)
	if err != nil {
		return err
	}
	// The one-shot crash target is only honoured from the live store.
	fileOverrides.NextCrashTarget = nil
	base := game.DefaultSettings().WithOverrides(fileOverrides)

	var (
		rounds      engine.RoundServices
		roundStore  *db.RoundStore
		ledger      *db.Ledger
		store       engine.SettingsStore
		settlements engine.AutoCashoutLedger
	)
	settings, paused := base, fileOverrides.Paused != nil && *fileOverrides.Paused
	var loaded config.SettingsOverrides
	if pg != nil {
		roundStore = db.NewRoundStore(pg)
		ledger = db.NewLedger(pg)
		settingsStore := db.NewSettingsStore(pg)
		store, settlements = settingsStore, ledger
		rounds = append(rounds, roundStore)

		settings, loaded, err = engine.InitialSettings(ctx, settingsStore, base)
		if err != nil {
			logger.Warn("⚠️ Failed to load persisted settings, using defaults", zap.Error(err))
		}
		if loaded.Paused != nil {
			paused = *loaded.Paused
		}
	}

	if cfg.AnchorEnabled() {
		anchor, err := contract.NewRoundAnchor(ctx, cfg, logger)
		if err != nil {
			logger.Warn("⚠️ Round anchor initialization failed", zap.Error(err))
			logger.Warn("   Rounds will not be committed on chain")
		} else {
			rounds = append(rounds, anchor)
			defer anchor.Close()
		}
	}

	/* =========================
	   ENGINE
	========================= */

	pool := engine.NewTaskPool(cfg.TaskConcurrency, logger.Named("tasks"))
	hub := ws.NewHub(nil, nil, logger.Named("ws"))

	publishers := publisher.Composite{hub, publisher.NewLog(logger.Named("events"))}
	if rdb != nil {
		publishers = append(publishers, publisher.NewRedis(rdb))
	}

	deps := engine.Deps{
		Ledger:               settlements,
		Store:                store,
		Publisher:            publishers,
		Pool:                 pool,
		Logger:               logger.Named("engine"),
		BroadcastMinInterval: cfg.BroadcastMinInterval,
	}
	if len(rounds) > 0 {
		deps.Rounds = rounds
	}
	machine := engine.NewMachine(settings, deps)

	if roundStore != nil {
		history, err := roundStore.RecentHistory(ctx, settings.HistorySize)
		if err != nil {
			logger.Warn("⚠️ Failed to load crash history", zap.Error(err))
		} else {
			machine.SeedHistory(history)
			logger.Info("📜 Loaded crash history", zap.Int("rounds", len(history)))
		}
	}

	scheduler := engine.NewScheduler(machine, cfg.TickInterval, logger.Named("scheduler"))
	if paused {
		scheduler.Pause()
		logger.Info("⏸️ Engine starts paused")
	}
	controller := engine.NewController(machine, scheduler, store, logger.Named("admin"))

	var (
		wsCommands  ws.CommandHandler
		apiCommands api.Commander
		board       api.LeaderboardSource
		lookup      api.RoundLookup
	)
	if ledger != nil {
		commands := engine.NewCommands(machine, ledger, logger.Named("commands"))
		wsCommands, apiCommands, board = commands, commands, ledger
	}
	if roundStore != nil {
		lookup = roundStore
	}
	hub.Bind(machine, wsCommands)

	/* =========================
	   HTTP
	========================= */

	health := []api.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error {
			if pg == nil {
				return errors.New("postgres not initialized")
			}
			return pg.HealthCheck(ctx)
		}},
		{Name: "redis", Check: func(ctx context.Context) error { return db.RedisHealthCheck(ctx, rdb) }},
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			State:       machine,
			Admin:       controller,
			Commands:    apiCommands,
			Rounds:      lookup,
			Leaderboard: board,
			Health:      health,
			Pool:        pool,
			WS:          hub,
			Logger:      logger.Named("api"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	scheduler.Start(ctx)
	if store != nil {
		refresher := engine.NewSettingsRefresher(store, machine, base, loaded, cfg.SettingsRefreshInterval, logger.Named("settings"))
		go refresher.Run(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Server starting", zap.String("addr", cfg.HTTPAddr))
		logger.Info("📡 WebSocket: /ws (subscribe to game.state, game.history, commands.bet, commands.cashout)")
		logger.Info("🔌 API: /api/health, /api/crash/state, /api/crash/history, /api/verify, /api/round/override, /api/bets, /api/cashout, /api/leaderboard")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			scheduler.Stop()
			stopHub()
			pool.Wait()
			return err
		}
	case <-ctx.Done():
		logger.Info("🛑 Shutting down...")
	}

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ HTTP shutdown", zap.Error(err))
	}
	// Drain in-flight writes and publishes before the connections close.
	pool.Wait()
	stopHub()

	stats := pool.Stats()
	logger.Info("👋 Server stopped",
		zap.Int64("tasksCompleted", stats.Completed),
		zap.Int64("tasksFailed", stats.Failed),
		zap.Int64("tasksDropped", stats.Dropped))
	return nil
}
