package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/masterdata"
	"github.com/abasto-pos/abasto-pos/internal/observability"
	"github.com/abasto-pos/abasto-pos/internal/returns"
	"github.com/abasto-pos/abasto-pos/internal/sales"
	"github.com/abasto-pos/abasto-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	MasterDataHandler *masterdata.Handler
	InventoryHandler  *inventory.Handler
	SalesHandler      *sales.Handler
	ReturnsHandler    *returns.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Abasto defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.MasterDataHandler != nil {
		r.Route("/masterdata", func(r chi.Router) {
			params.MasterDataHandler.MountRoutes(r, RequireCapability)
		})
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", func(r chi.Router) {
			params.InventoryHandler.MountRoutes(r, RequireCapability)
		})
	}
	if params.SalesHandler != nil {
		r.Route("/sales", func(r chi.Router) {
			params.SalesHandler.MountRoutes(r, RequireCapability)
		})
	}
	if params.ReturnsHandler != nil {
		r.Route("/returns", func(r chi.Router) {
			params.ReturnsHandler.MountRoutes(r, RequireCapability)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
