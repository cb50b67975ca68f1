package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/vendor-spend/internal/budget"
	"github.com/vnmchuo/vendor-spend/internal/configuration"
	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/worker"
	"github.com/vnmchuo/vendor-spend/pkg/ratelimit"
)

type Reconciler interface {
	Reconcile(ctx context.Context, userID int64, vendor, identifier string) ([]costs.Point, error)
}

type Configurations interface {
	ConfigureDatadog(ctx context.Context, userID int64, identifier, apiKey, appKey string) (*configuration.Configuration, string, error)
	ConfigureAWS(ctx context.Context, userID int64, identifier, accessKeyID, secretAccessKey string) (*configuration.Configuration, string, error)
	List(ctx context.Context, userID int64) ([]configuration.Configuration, error)
	Remove(ctx context.Context, key costs.Key) error
}

type Budgets interface {
	Save(ctx context.Context, userID int64, vendor string, budgets []budget.Entry) (*budget.Plan, error)
	List(ctx context.Context, userID int64, vendor string) ([]budget.Plan, error)
	Update(ctx context.Context, userID, id int64, vendor string, budgets []budget.Entry) (*budget.Plan, error)
	Delete(ctx context.Context, userID, id int64) error
}

type BatchRunner interface {
	RunAll(ctx context.Context) worker.Result
}

type JobQueue interface {
	Enqueue(ctx context.Context) (worker.BatchJob, error)
	Get(id string) (worker.BatchJob, error)
}

type Handler struct {
	reconciler Reconciler
	configs    Configurations
	budgets    Budgets
	batch      BatchRunner
	jobs       JobQueue
	limiter    *ratelimit.Limiter
	tracer     trace.Tracer
	origins    []string
	validate   *validator.Validate
	logger     zerolog.Logger
}

type Deps struct {
	Reconciler     Reconciler
	Configurations Configurations
	Budgets        Budgets
	Batch          BatchRunner
	Jobs           JobQueue
	Limiter        *ratelimit.Limiter
	Tracer         trace.Tracer
	// AllowedOrigins are the browser origins permitted by CORS.
	AllowedOrigins []string
	Logger         zerolog.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		reconciler: d.Reconciler,
		configs:    d.Configurations,
		budgets:    d.Budgets,
		batch:      d.Batch,
		jobs:       d.Jobs,
		limiter:    d.Limiter,
		tracer:     d.Tracer,
		origins:    d.AllowedOrigins,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     d.Logger.With().Str("component", "api").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes: caller mistakes are
// 4xx, vendor failures 502 and everything else 500.
func statusFor(err error) int {
	var fetchErr *vendor.FetchError
	switch {
	case errors.Is(err, vendor.ErrUnsupportedVendor),
		errors.Is(err, budget.ErrInvalidVendor),
		errors.Is(err, budget.ErrVendorImmutable):
		return http.StatusBadRequest
	case errors.Is(err, vendor.ErrConfigurationNotFound),
		errors.Is(err, budget.ErrPlanNotFound),
		errors.Is(err, worker.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrJobRunning):
		return http.StatusConflict
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("request_id", requestID(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "vendor-spend"})
}
