package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vnmchuo/vendor-spend/internal/forecast"
)

const maxForecastMonths = 24

// HandleVendorMetrics returns the reconciled monthly series for one
// configuration.
func (h *Handler) HandleVendorMetrics(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	vendorTag := chi.URLParam(r, "vendor")
	identifier := r.URL.Query().Get("identifier")

	ctx, span := h.tracer.Start(r.Context(), "api.vendor_metrics")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", uid),
		attribute.String("vendor", vendorTag),
		attribute.String("request_id", requestID(r)),
	)

	points, err := h.reconciler.Reconcile(ctx, uid, vendorTag, identifier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile")
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": points})
}

// HandleVendorForecast reconciles the series and projects it forward.
func (h *Handler) HandleVendorForecast(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	vendorTag := chi.URLParam(r, "vendor")
	identifier := r.URL.Query().Get("identifier")

	horizon := forecast.DefaultHorizon
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxForecastMonths {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 24")
			return
		}
		horizon = n
	}

	ctx, span := h.tracer.Start(r.Context(), "api.vendor_forecast")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", uid),
		attribute.String("vendor", vendorTag),
		attribute.Int("horizon", horizon),
	)

	history, err := h.reconciler.Reconcile(ctx, uid, vendorTag, identifier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile")
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": forecast.Predict(history, horizon)})
}
