package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/pkg/ratelimit"
)

// NewRouter wires every route. authMiddleware guards all /v1 routes.
func NewRouter(h *Handler, authMiddleware auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument)
	r.Use(cors(h.origins))

	// Public routes
	r.Get("/healthz", h.HandleHealth)

	// Protected routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit(ratelimit.RequestCost))

			r.Get("/vendors-metrics/{vendor}", h.HandleVendorMetrics)
			r.Get("/vendors-forecast/{vendor}", h.HandleVendorForecast)

			r.Route("/configuration", func(r chi.Router) {
				r.Post("/datadog", h.HandleConfigureDatadog)
				r.Post("/aws", h.HandleConfigureAWS)
				r.Get("/list", h.HandleListConfigurations)
				r.Delete("/{vendor}/{identifier}", h.HandleDeleteConfiguration)
			})

			r.Route("/budget-plans", func(r chi.Router) {
				r.Post("/", h.HandleSaveBudgetPlan)
				r.Get("/", h.HandleListBudgetPlans)
				r.Put("/{id}", h.HandleUpdateBudgetPlan)
				r.Delete("/{id}", h.HandleDeleteBudgetPlan)
			})

			r.Get("/jobs/{id}", h.HandleGetJob)
		})

		// Batch triggers fan out across all users.
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit(ratelimit.BatchCost))

			r.Post("/vendors-metrics/batch", h.HandleBatchUpdate)
			r.Post("/jobs", h.HandleEnqueueBatch)
		})
	})

	return r
}
