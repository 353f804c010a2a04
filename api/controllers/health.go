package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/rmoralesdev/contentmint-backend/api/responses"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/redis"
	"github.com/rmoralesdev/contentmint-backend/pkg/storage/gcs"
)

const readinessTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ContentMint-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, gcsP gcs.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ContentMint-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		ready := true

		checks["db"] = checkDependency(ctx, logg, "db", dbP)
		checks["redis"] = checkDependency(ctx, logg, "redis", redisP)
		checks["gcs"] = checkDependency(ctx, logg, "gcs", gcsP)
		for _, status := range checks {
			if status != "ok" && status != "skipped" {
				ready = false
			}
		}

		payload := map[string]any{"status": "ready", "checks": checks}
		if !ready {
			payload["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, payload)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

type pinger interface {
	Ping(context.Context) error
}

func checkDependency(ctx context.Context, logg *logger.Logger, name string, p pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		if logg != nil {
			logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
		}
		return "unavailable"
	}
	return "ok"
}
