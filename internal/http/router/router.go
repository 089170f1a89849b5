// Package router wires the Hero handlers, health check and metrics
// endpoint into a chi router.
//
// Route table:
//
//	POST   /heroes/       create a hero
//	GET    /heroes/       list heroes (optional ?offset=&limit=)
//	GET    /heroes/{id}   get one hero
//	PATCH  /heroes/{id}   merge-patch a hero
//	DELETE /heroes/{id}   delete a hero
//	GET    /healthz       database ping
//	GET    /metrics       Prometheus exposition
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aanand-mishra/heroes-api/internal/http/handlers/hero"
	"github.com/aanand-mishra/heroes-api/internal/http/middleware"
	"github.com/aanand-mishra/heroes-api/internal/storage"
	"github.com/aanand-mishra/heroes-api/internal/utils/response"
)

const healthTimeout = 2 * time.Second

// Options are the router's dependencies.
type Options struct {
	Storage        storage.Storage
	Logger         *slog.Logger
	Registry       *prometheus.Registry
	ConflictStatus int
	CORSOrigins    []string
}

// New builds the HTTP handler for the whole service.
func New(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	conflictStatus := opts.ConflictStatus
	if conflictStatus == 0 {
		conflictStatus = http.StatusNotFound
	}

	metrics := middleware.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// Both /heroes and /heroes/ reach the "/" routes of the sub-router.
	r.Route("/heroes", func(r chi.Router) {
		r.Post("/", hero.New(opts.Storage, conflictStatus))
		r.Get("/", hero.GetList(opts.Storage))
		r.Get("/{id}", hero.GetByID(opts.Storage))
		r.Patch("/{id}", hero.Update(opts.Storage))
		r.Delete("/{id}", hero.Delete(opts.Storage))
	})

	r.Get("/healthz", health(opts.Storage))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

func health(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}
