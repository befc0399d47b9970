package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"wingo-engine/config"
	"wingo-engine/controllers"
	"wingo-engine/db"
	"wingo-engine/engine"
	"wingo-engine/logger"
	"wingo-engine/redis"
	"wingo-engine/routes"
	"wingo-engine/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build logger")
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modeList, err := config.LoadModes(cfg.ModesFile)
	if err != nil {
		return err
	}
	modes := engine.NewModeSet(modeList)
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Connect to the database
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")

	st := store.NewMongoStore(client, cfg.MongoDatabase)
	if err := st.EnsureIndexes(ctx); err != nil {
		return err
	}

	ledger := engine.NewWalletLedger(st, cfg.GuestWelcomeBalance, log)
	settlement := engine.NewSettlementEngine(st, ledger, log)
	lifecycleCfg := engine.LifecycleConfig{
		Store:      st,
		Modes:      modes,
		Periods:    engine.NewPeriodGenerator(st, modes, loc),
		Outcomes:   engine.NewOutcomeGenerator(st, nil, log),
		Settlement: settlement,
		StuckAfter: cfg.StuckAfter,
		Logger:     log,
	}

	var (
		lease *redis.TickLease
		cache controllers.RoundCache
	)
	if cfg.RedisAddr != "" {
		rds, err := redis.NewRedisService(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rds.Close()
		log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")

		lease = redis.NewTickLease(rds, redis.DefaultLeaseKey, cfg.TickLeaseTTL)
		snapshots := redis.NewRoundSnapshotCache(rds, 10*time.Minute, log)
		lifecycleCfg.Observer = snapshots
		cache = snapshots
	} else {
		log.Warn("REDIS_ADDR not set, running as the only round scheduler")
	}

	lifecycle := engine.NewRoundLifecycle(lifecycleCfg)
	scheduler := engine.NewScheduler(lifecycle, modes.Names(), cfg.TickInterval, log)
	if lease != nil {
		scheduler.WithLease(lease)
	}
	// ticks must outlive the signal context so shutdown can wait for them
	if err := scheduler.Start(context.Background()); err != nil {
		return err
	}

	// Initialize routes
	r := gin.New()
	r.Use(gin.Recovery())
	routes.RoundRoutes(r, controllers.NewRoundController(st, modes, cache, log))
	routes.BetRoutes(r, controllers.NewBetController(
		engine.NewBetPlacement(st, modes, ledger, cfg.MinStake, cfg.MaxStake, log),
		st,
		controllers.NewAccountRateLimiter(cfg.BetRateLimit, cfg.BetRateBurst),
		log,
	))
	routes.WalletRoutes(r, controllers.NewWalletController(ledger, st))
	routes.MetricsRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		scheduler.Stop()
		return err
	}

	// let an in-flight tick finish before the store goes away
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
