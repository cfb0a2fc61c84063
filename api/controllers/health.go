package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/Loxess-crl/carrito-compras/api/responses"
	"github.com/Loxess-crl/carrito-compras/pkg/config"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is the readiness probe surface shared by the backing clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Carrito-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every hard dependency before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Carrito-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var probeErr error
		statuses := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				statuses[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				statuses[name] = "down"
				probeErr = multierr.Append(probeErr, err)
				continue
			}
			statuses[name] = "up"
		}

		if probeErr != nil {
			err := pkgerrors.Wrap(pkgerrors.CodeDependency, probeErr, "readiness probe failed").
				WithDetails(statuses)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": statuses})
	}
}
