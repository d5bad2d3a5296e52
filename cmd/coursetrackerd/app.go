package main

import (
	"context"
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"course-tracker-backend/config"
	"course-tracker-backend/internal/checker"
	"course-tracker-backend/internal/db"
	"course-tracker-backend/internal/logger"
	"course-tracker-backend/internal/metrics"
	"course-tracker-backend/internal/notification"
	"course-tracker-backend/internal/scraper"
	"course-tracker-backend/internal/store"
	"course-tracker-backend/internal/tracker"
)

// app holds the components shared by the serve and check commands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    store.Store
	runner   *checker.Runner
	registry *prometheus.Registry
	webpush  *webpush.Options

	pool  *notification.WorkerPool
	redis *redis.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	loc, err := time.LoadLocation(cfg.BookingAPI.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking_api.timezone %q: %w", cfg.BookingAPI.Timezone, err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    appStore,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifiers := notification.Multi{notification.NewLogNotifier(log)}

	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			return nil, fmt.Errorf("push is enabled but VAPID keys are not configured")
		}
		a.webpush = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		a.pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, a.webpush, log)
		a.pool.Start(ctx)
		notifiers = append(notifiers, a.pool)
	}

	if cfg.Redis.Enabled {
		client, err := notification.NewRedisClient(&cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
		notifiers = append(notifiers, notification.NewRedisNotifier(client, cfg.Redis.Channel))
	}

	fetcher := scraper.NewFetcher(&cfg.BookingAPI, log)
	a.runner = checker.NewRunner(appStore, fetcher, tracker.NewEngine(loc), notifiers, metrics.New(a.registry), log)
	return a, nil
}

// close drains queued push deliveries and releases connections.
func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
