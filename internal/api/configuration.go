package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vnmchuo/vendor-spend/internal/configuration"
	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

type configResponse struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *Handler) HandleConfigureDatadog(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req datadogRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, msg, err := h.configs.ConfigureDatadog(r.Context(), uid, req.Identifier, req.APIKey, req.AppKey)
	h.writeConfigured(w, r, c, msg, err)
}

func (h *Handler) HandleConfigureAWS(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req awsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, msg, err := h.configs.ConfigureAWS(r.Context(), uid, req.Identifier, req.AccessKeyID, req.SecretAccessKey)
	h.writeConfigured(w, r, c, msg, err)
}

func (h *Handler) writeConfigured(w http.ResponseWriter, r *http.Request, c *configuration.Configuration, msg string, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{ID: c.ID, Type: c.Vendor(), Message: msg})
}

func (h *Handler) HandleListConfigurations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	configs, err := h.configs.List(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if configs == nil {
		configs = []configuration.Configuration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": configs})
}

func (h *Handler) HandleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	vendorTag := chi.URLParam(r, "vendor")
	if !vendor.IsKnown(vendorTag) {
		h.fail(w, r, vendor.UnsupportedVendor(vendorTag))
		return
	}
	key := costs.Key{UserID: uid, Vendor: vendorTag, Identifier: chi.URLParam(r, "identifier")}

	if err := h.configs.Remove(r.Context(), key); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration deleted successfully"})
}
