package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func planID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid budget plan id")
		return 0, false
	}
	return id, true
}

func (h *Handler) HandleSaveBudgetPlan(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := req.entries()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.budgets.Save(r.Context(), uid, req.Vendor, entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": plan, "status": "success"})
}

func (h *Handler) HandleListBudgetPlans(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	plans, err := h.budgets.List(r.Context(), uid, r.URL.Query().Get("vendor"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": plans, "status": "success"})
}

func (h *Handler) HandleUpdateBudgetPlan(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := planID(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := req.entries()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.budgets.Update(r.Context(), uid, id, req.Vendor, entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": plan, "status": "success"})
}

func (h *Handler) HandleDeleteBudgetPlan(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := planID(w, r)
	if !ok {
		return
	}
	if err := h.budgets.Delete(r.Context(), uid, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Budget plan deleted successfully"})
}
