package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/medifast-dev/medifast-backend/api/routes"
	"github.com/medifast-dev/medifast-backend/internal/auth"
	"github.com/medifast-dev/medifast-backend/internal/availability"
	"github.com/medifast-dev/medifast-backend/internal/favorites"
	"github.com/medifast-dev/medifast-backend/internal/medicines"
	"github.com/medifast-dev/medifast-backend/internal/pickups"
	"github.com/medifast-dev/medifast-backend/internal/sites"
	"github.com/medifast-dev/medifast-backend/internal/stock"
	"github.com/medifast-dev/medifast-backend/internal/users"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/migrate"
	"github.com/medifast-dev/medifast-backend/pkg/outbox"
	"github.com/medifast-dev/medifast-backend/pkg/redis"
	"github.com/medifast-dev/medifast-backend/pkg/whatsapp"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	userRepo := users.NewRepository(dbClient.DB())
	medicineRepo := medicines.NewRepository(dbClient.DB())
	siteRepo := sites.NewRepository(dbClient.DB())
	stockRepo := stock.NewRepository(dbClient.DB())
	pickupRepo := pickups.NewRepository(dbClient.DB())
	favoritesRepo := favorites.NewRepository(dbClient.DB())

	watcher, err := availability.NewService(availability.ServiceParams{
		FavoritesRepo: favoritesRepo,
		MedicineRepo:  medicineRepo,
		SiteRepo:      siteRepo,
		Sender:        sender,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create availability watcher", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:        userRepo,
		PasswordCfg: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:    userRepo,
		Sender:      sender,
		Logger:      logg,
		JWTCfg:      cfg.JWT,
		PasswordCfg: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	medicineService, err := medicines.NewService(medicines.ServiceParams{Repo: medicineRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create medicine service", err)
		os.Exit(1)
	}

	siteService, err := sites.NewService(sites.ServiceParams{Repo: siteRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create site service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(stock.ServiceParams{
		DB:           dbClient,
		Repo:         stockRepo,
		MedicineRepo: medicineRepo,
		SiteRepo:     siteRepo,
		Outbox:       emitter,
		Watcher:      watcher,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	pickupService, err := pickups.NewService(pickups.ServiceParams{
		DB:        dbClient,
		Repo:      pickupRepo,
		StockRepo: stockRepo,
		UserRepo:  userRepo,
		Outbox:    emitter,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pickup service", err)
		os.Exit(1)
	}

	favoriteService, err := favorites.NewService(favorites.ServiceParams{
		FavoritesRepo: favoritesRepo,
		MedicineRepo:  medicineRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create favorites service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			authService,
			userService,
			medicineService,
			siteService,
			stockService,
			pickupService,
			favoriteService,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
