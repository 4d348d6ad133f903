// Package api exposes the orchestration core over HTTP. Every route is
// tenant-scoped through the X-Tenant-ID header.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"kadali/internal/middleware"
	"kadali/internal/service/catalog"
	"kadali/internal/service/cluster"
	"kadali/internal/service/query"
)

// Handler serves the orchestration REST API.
type Handler struct {
	clusters *cluster.Service
	queries  *query.Service
	catalog  *catalog.Service
	logger   *slog.Logger
}

// Options bundles the middleware knobs for NewRouter.
type Options struct {
	DefaultTenant      string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// NewHandler creates a Handler over the given services.
func NewHandler(clusters *cluster.Service, queries *query.Service, cat *catalog.Service, logger *slog.Logger) *Handler {
	return &Handler{
		clusters: clusters,
		queries:  queries,
		catalog:  cat,
		logger:   logger.With("component", "api"),
	}
}

// NewRouter builds the chi router with the full middleware chain and route
// table.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.TenantHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Tenant(opts.DefaultTenant))
	if opts.RateLimitRPS > 0 {
		r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: opts.RateLimitRPS,
			Burst:             opts.RateLimitBurst,
		}))
	}

	r.Get("/healthz", h.health)

	r.Route("/clusters", func(r chi.Router) {
		r.Get("/", h.listClusters)
		r.Post("/", h.createCluster)
		r.Get("/{clusterId}", h.getCluster)
		r.Delete("/{clusterId}", h.terminateCluster)
		r.Post("/{clusterId}/activity", h.recordClusterActivity)
		r.Post("/{clusterId}/reset", h.resetCluster)
	})

	r.Route("/data", func(r chi.Router) {
		r.Get("/databases", h.listDatabases)
		r.Post("/databases", h.createDatabase)
		r.Get("/datasets", h.listDatasets)
		r.Post("/datasets", h.registerDataset)
		r.Get("/datasets/{database}/{table}", h.getDataset)
		r.Delete("/datasets/{database}/{table}", h.deleteDataset)
		r.Post("/query", h.submitQuery)
		r.Get("/query/{queryId}", h.getQuery)
		r.Delete("/query/{queryId}", h.cancelQuery)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
