package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medifast-dev/medifast-backend/api/controllers"
	"github.com/medifast-dev/medifast-backend/api/middleware"
	"github.com/medifast-dev/medifast-backend/internal/auth"
	"github.com/medifast-dev/medifast-backend/internal/favorites"
	"github.com/medifast-dev/medifast-backend/internal/medicines"
	"github.com/medifast-dev/medifast-backend/internal/pickups"
	"github.com/medifast-dev/medifast-backend/internal/sites"
	"github.com/medifast-dev/medifast-backend/internal/stock"
	"github.com/medifast-dev/medifast-backend/internal/users"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database controllers.Pinger,
	cache controllers.Pinger,
	authService auth.Service,
	userService users.Service,
	medicineService medicines.Service,
	siteService sites.Service,
	stockService stock.Service,
	pickupService pickups.Service,
	favoriteService favorites.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	adminOnly := middleware.RequireRole(enums.RoleAdmin, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, cache))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/register", controllers.AuthRegister(userService, logg))
		r.Post("/recover", controllers.AuthRecoverPassword(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/auth/change-password", controllers.AuthChangePassword(authService, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UsersMe(userService, logg))
			r.With(adminOnly).Post("/", controllers.UsersCreate(userService, logg))
			r.With(adminOnly).Get("/", controllers.UsersList(userService, logg))
			r.Get("/{id}", controllers.UsersGet(userService, logg))
			r.Put("/{id}", controllers.UsersUpdate(userService, logg))
			r.With(adminOnly).Delete("/{id}", controllers.UsersDelete(userService, logg))
		})

		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", controllers.MedicinesList(medicineService, logg))
			r.Get("/{id}", controllers.MedicinesGet(medicineService, logg))
			r.With(adminOnly).Post("/", controllers.MedicinesCreate(medicineService, logg))
			r.With(adminOnly).Put("/{id}", controllers.MedicinesUpdate(medicineService, logg))
			r.With(adminOnly).Delete("/{id}", controllers.MedicinesDelete(medicineService, logg))
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", controllers.SitesList(siteService, logg))
			r.Get("/{id}", controllers.SitesGet(siteService, logg))
			r.With(adminOnly).Post("/", controllers.SitesCreate(siteService, logg))
			r.With(adminOnly).Put("/{id}", controllers.SitesUpdate(siteService, logg))
			r.With(adminOnly).Delete("/{id}", controllers.SitesDelete(siteService, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.StockList(stockService, logg))
			r.Get("/lookup", controllers.StockLookup(stockService, logg))
			r.Get("/search", controllers.StockSearch(stockService, logg))
			r.Get("/summary", controllers.StockSummary(stockService, logg))
			r.Get("/{id}", controllers.StockGet(stockService, logg))
			r.With(adminOnly).Post("/", controllers.StockCreate(stockService, logg))
			r.With(adminOnly).Post("/{id}/adjust", controllers.StockAdjust(stockService, logg))
			r.With(adminOnly).Put("/{id}", controllers.StockUpdate(stockService, logg))
			r.With(adminOnly).Delete("/{id}", controllers.StockDelete(stockService, logg))
		})

		r.Route("/pickups", func(r chi.Router) {
			r.Get("/", controllers.PickupsList(pickupService, logg))
			r.Post("/", controllers.PickupsCreate(pickupService, logg))
			r.Post("/batch", controllers.PickupsCreateBatch(pickupService, logg))
			r.Get("/{id}", controllers.PickupsGet(pickupService, logg))
			r.Post("/{id}/state", controllers.PickupsUpdateState(pickupService, logg))
			r.Post("/{id}/reschedule", controllers.PickupsReschedule(pickupService, logg))
			r.With(adminOnly).Delete("/{id}", controllers.PickupsDelete(pickupService, logg))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.FavoritesList(favoriteService, logg))
			r.Post("/{medicineID}", controllers.FavoritesAdd(favoriteService, logg))
			r.Get("/{medicineID}", controllers.FavoritesCheck(favoriteService, logg))
			r.Delete("/{medicineID}", controllers.FavoritesRemove(favoriteService, logg))
		})
	})

	return r
}
