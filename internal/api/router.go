// Package api assembles the portal's HTTP surface.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/api/handlers"
	"github.com/medihope/portal/internal/api/middleware"
	"github.com/medihope/portal/internal/observability/metrics"
	"github.com/medihope/portal/internal/views"
)

// ServiceName identifies the portal in logs, traces and health output.
const ServiceName = "medihope-portal"

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// NewRouter builds the router. Every check must pass for /ready to
// answer 200.
func NewRouter(app *views.AppContext, logger *zap.Logger, checks map[string]ReadyCheck) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(app.Metrics))
	r.Use(middleware.Tracing())

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(checks))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/medicines", handlers.NewMedicineHandler(app, logger).Routes())
		r.Mount("/donors", handlers.NewDonorHandler(app, logger).Routes())
		r.Mount("/needy", handlers.NewNeedyHandler(app, logger).Routes())
		r.Mount("/forms", handlers.NewFormHandler().Routes())
		r.Mount("/preferences", handlers.NewPreferenceHandler(app.Prefs, logger).Routes())
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":%q}`, ServiceName)
}

func readyHandler(checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, "not ready: "+name, http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	}
}
