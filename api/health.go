package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopquery/shopquery/logging"
)

// Pinger reports backend reachability, typically *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// health is the liveness probe.
func health(logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ready is the readiness probe. With a pinger configured it verifies the
// durable store answers; without one the process being up is enough.
func ready(pinger Pinger, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				writeError(w, logger, http.StatusServiceUnavailable, "store_unreachable", err.Error())
				return
			}
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
	}
}
