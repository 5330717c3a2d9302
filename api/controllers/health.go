package controllers

import (
	"context"
	"net/http"

	"github.com/medifast-dev/medifast-backend/api/responses"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

// Pinger is the slice of a backing dependency the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady reports degraded when either the database or redis is
// unreachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, database Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"redis":    "ok",
		}
		healthy := true

		if database == nil {
			checks["database"] = "not configured"
			healthy = false
		} else if err := database.Ping(r.Context()); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}

		if cache == nil {
			checks["redis"] = "not configured"
			healthy = false
		} else if err := cache.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "service not ready").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}
