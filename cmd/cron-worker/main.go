package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medifast-dev/medifast-backend/internal/cron"
	"github.com/medifast-dev/medifast-backend/internal/medicines"
	"github.com/medifast-dev/medifast-backend/internal/pickups"
	"github.com/medifast-dev/medifast-backend/internal/sites"
	"github.com/medifast-dev/medifast-backend/internal/stock"
	"github.com/medifast-dev/medifast-backend/internal/users"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/metrics"
	"github.com/medifast-dev/medifast-backend/pkg/migrate"
	"github.com/medifast-dev/medifast-backend/pkg/outbox"
	"github.com/medifast-dev/medifast-backend/pkg/redis"
	"github.com/medifast-dev/medifast-backend/pkg/whatsapp"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sender := whatsapp.NewClient(cfg.WhatsApp, logg)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	pickupRepo := pickups.NewRepository(dbClient.DB())
	pickupService, err := pickups.NewService(pickups.ServiceParams{
		DB:        dbClient,
		Repo:      pickupRepo,
		StockRepo: stock.NewRepository(dbClient.DB()),
		UserRepo:  users.NewRepository(dbClient.DB()),
		Outbox:    emitter,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup service", err)
		os.Exit(1)
	}

	reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:    logg,
		Pickups:   pickupRepo,
		Users:     users.NewRepository(dbClient.DB()),
		Medicines: medicines.NewRepository(dbClient.DB()),
		Sites:     sites.NewRepository(dbClient.DB()),
		Sender:    sender,
		Lead:      cfg.Cron.ReminderLead,
		Window:    cfg.Cron.ReminderWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder job", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewExpiryJob(cron.ExpiryJobParams{
		Logger:  logg,
		Pickups: pickupService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reminderJob, expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go serveMetrics(ctx, cfg, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// serveMetrics exposes the prometheus registry so the scraper can reach the
// worker. Failures are logged but never take the worker down.
func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger) {
	if cfg.App.Port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics endpoint stopped", err)
	}
}
