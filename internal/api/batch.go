package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandleBatchUpdate runs a full batch synchronously. It always answers 200;
// per-configuration failures are listed in the body.
func (h *Handler) HandleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.batch_update")
	defer span.End()

	writeJSON(w, http.StatusOK, h.batch.RunAll(ctx))
}

func (h *Handler) HandleEnqueueBatch(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Enqueue(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
