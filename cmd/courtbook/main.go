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

	"courtbook/internal/api"
	"courtbook/internal/cache"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("COURTBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Logging.JSON {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	logger = logger.Level(cfg.LogLevel())

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger, database.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	slotCache := cache.NewSlotCache(rdb, cfg.SlotCacheTTL(), &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	bus.OnError(func(ev events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	bus.Subscribe("*", func(ev events.Event) error {
		logger.Info().
			Str("event", ev.Type).
			Int64("reservation_id", ev.ReservationID).
			Int64("resource_id", ev.ResourceID).
			Msg("audit")
		return nil
	})

	engine := service.NewEngine(db, bus, &logger, service.Options{
		Cache:          slotCache,
		Clock:          service.SystemClock{},
		Tokens:         service.UUIDTokens{},
		Location:       loc,
		StorageRetries: cfg.Booking.StorageRetries,
		RetryBackoff:   cfg.RetryBackoff(),
	})

	// Initial load + hot reload of resources configuration
	watcher := config.NewResourcesWatcher(cfg.ResourcesConfigPath, 30*time.Second, func(change config.ResourcesChange) error {
		if change.Empty() {
			logger.Debug().Msg("resources config rewritten without changes")
			return nil
		}
		if err := db.SyncResourcesFromConfig(ctx, change.Config); err != nil {
			return fmt.Errorf("apply resources config: %w", err)
		}
		if err := slotCache.Flush(ctx); err != nil {
			logger.Warn().Err(err).Msg("slot cache flush failed")
		}
		logger.Info().
			Ints64("added", change.Added).
			Ints64("removed", change.Removed).
			Ints64("changed", change.Changed).
			Msg("resources config applied")
		return nil
	})
	watcher.OnError = func(err error) {
		logger.Error().Err(err).Msg("resources config reload failed, keeping previous version")
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load resources config")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup.Path,
			time.Duration(cfg.Backup.IntervalHours)*time.Hour,
			time.Duration(cfg.Backup.RetentionDays)*24*time.Hour,
			&logger)
		go backups.Start(ctx)
	}

	go engine.RunCompletion(ctx, cfg.CompletionInterval())

	proxies, err := api.ParseTrustedProxies(cfg.API.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid api.trusted_proxies")
	}

	server := api.NewHTTPServer(engine, &logger, api.Options{
		Address:            cfg.Server.Address,
		ReadTimeout:        time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:       time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		RateLimitPerSecond: cfg.API.RateLimitPerSecond,
		RateLimitBurst:     cfg.API.RateLimitBurst,
		TrustedProxies:     proxies,
	})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Msg("courtbook started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
		stop()
	}
	logger.Info().Msg("courtbook stopped")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	checks := []api.ReadyCheck{{Name: "db", Check: db.PingContext}}
	if rdb != nil {
		checks = append(checks, api.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	serve(ctx, "health", port, api.NewHealthMux(checks...), logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, "metrics", port, mux, logger)
}

func serve(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
