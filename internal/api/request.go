package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/budget"
	"github.com/vnmchuo/vendor-spend/internal/month"
)

const maxBodyBytes = 1 << 20

type datadogRequest struct {
	APIKey     string `json:"api_key" validate:"required"`
	AppKey     string `json:"app_key" validate:"required"`
	Identifier string `json:"identifier" validate:"max=255"`
}

type awsRequest struct {
	AccessKeyID     string `json:"aws_access_key_id" validate:"required"`
	SecretAccessKey string `json:"aws_secret_access_key" validate:"required"`
	Identifier      string `json:"identifier" validate:"max=255"`
}

type budgetEntry struct {
	Month  month.Month `json:"month"`
	Amount float64     `json:"amount" validate:"gte=0"`
}

type budgetRequest struct {
	Vendor  string        `json:"vendor" validate:"required"`
	Budgets []budgetEntry `json:"budgets" validate:"required,dive"`
}

func (b budgetRequest) entries() ([]budget.Entry, error) {
	out := make([]budget.Entry, 0, len(b.Budgets))
	for i, e := range b.Budgets {
		if e.Month.IsZero() {
			return nil, fmt.Errorf("budgets[%d].month is required", i)
		}
		out = append(out, budget.Entry{Month: e.Month, Amount: e.Amount})
	}
	return out, nil
}

// decode reads a JSON body into v and validates its struct tags.
func (h *Handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New("validation failed: " + strings.Join(msgs, ", "))
		}
		return err
	}
	return nil
}

// userID returns the authenticated user or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return id, true
}

func requestID(r *http.Request) string {
	return auth.GetRequestID(r.Context())
}
