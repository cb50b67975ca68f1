package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	extratelimit "github.com/vnmchuo/ratelimiter"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/budget"
	"github.com/vnmchuo/vendor-spend/internal/configuration"
	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/worker"
	"github.com/vnmchuo/vendor-spend/pkg/ratelimit"
)

// Mock Reconciler
type mockReconciler struct {
	reconcileFunc func(ctx context.Context, userID int64, vendor, identifier string) ([]costs.Point, error)
}

func (m *mockReconciler) Reconcile(ctx context.Context, userID int64, v, identifier string) ([]costs.Point, error) {
	if m.reconcileFunc != nil {
		return m.reconcileFunc(ctx, userID, v, identifier)
	}
	return nil, nil
}

// Mock Configurations
type mockConfigs struct {
	configureFunc func(vendor, identifier string) (*configuration.Configuration, string, error)
	listFunc      func(userID int64) ([]configuration.Configuration, error)
	removed       []costs.Key
	removeErr     error
}

func (m *mockConfigs) ConfigureDatadog(ctx context.Context, userID int64, identifier, apiKey, appKey string) (*configuration.Configuration, string, error) {
	return m.configureFunc(vendor.Datadog, identifier)
}

func (m *mockConfigs) ConfigureAWS(ctx context.Context, userID int64, identifier, accessKeyID, secretAccessKey string) (*configuration.Configuration, string, error) {
	return m.configureFunc(vendor.AWS, identifier)
}

func (m *mockConfigs) List(ctx context.Context, userID int64) ([]configuration.Configuration, error) {
	if m.listFunc != nil {
		return m.listFunc(userID)
	}
	return nil, nil
}

func (m *mockConfigs) Remove(ctx context.Context, key costs.Key) error {
	m.removed = append(m.removed, key)
	return m.removeErr
}

// Mock Budgets
type mockBudgets struct {
	saved   []budget.Entry
	saveErr error
}

func (m *mockBudgets) Save(ctx context.Context, userID int64, v string, entries []budget.Entry) (*budget.Plan, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saved = entries
	return &budget.Plan{ID: 1, UserID: userID, Vendor: v, Type: budget.DefaultType, Budgets: entries}, nil
}

func (m *mockBudgets) List(ctx context.Context, userID int64, v string) ([]budget.Plan, error) {
	return []budget.Plan{}, nil
}

func (m *mockBudgets) Update(ctx context.Context, userID, id int64, v string, entries []budget.Entry) (*budget.Plan, error) {
	return nil, budget.ErrPlanNotFound
}

func (m *mockBudgets) Delete(ctx context.Context, userID, id int64) error {
	return nil
}

type mockBatch struct{ result worker.Result }

func (m *mockBatch) RunAll(ctx context.Context) worker.Result { return m.result }

type mockJobs struct{}

func (mockJobs) Enqueue(ctx context.Context) (worker.BatchJob, error) {
	return worker.BatchJob{}, worker.ErrJobRunning
}

func (mockJobs) Get(id string) (worker.BatchJob, error) {
	return worker.BatchJob{}, worker.ErrJobNotFound
}

// Mock Limiter Store
type mockLimiterStore struct {
	allowed bool
	err     error
	charged []int
}

func (m *mockLimiterStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	m.charged = append(m.charged, n)
	return &extratelimit.Result{Allowed: m.allowed}, m.err
}

func (m *mockLimiterStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	m.charged = append(m.charged, 1)
	return &extratelimit.Result{Allowed: m.allowed}, m.err
}

func (m *mockLimiterStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: m.allowed}, m.err
}

type testDeps struct {
	reconciler *mockReconciler
	configs    *mockConfigs
	budgets    *mockBudgets
	batch      *mockBatch
	limiter    *mockLimiterStore
}

// Test Suite
func setupTest(limiterAllowed bool) (http.Handler, *testDeps) {
	d := &testDeps{
		reconciler: &mockReconciler{},
		configs:    &mockConfigs{},
		budgets:    &mockBudgets{},
		batch:      &mockBatch{},
		limiter:    &mockLimiterStore{allowed: limiterAllowed},
	}
	h := NewHandler(Deps{
		Reconciler:     d.reconciler,
		Configurations: d.configs,
		Budgets:        d.budgets,
		Batch:          d.batch,
		Jobs:           mockJobs{},
		Limiter:        ratelimit.NewTestLimiter(d.limiter),
		Tracer:         noop.NewTracerProvider().Tracer("test"),
		AllowedOrigins: []string{"https://dash.example.com/"},
		Logger:         zerolog.Nop(),
	})
	// Stand-in for the JWT middleware: every request is user 7.
	fakeAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), 7)))
		})
	}
	return NewRouter(h, fakeAuth), d
}

func do(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHealthz(t *testing.T) {
	h, _ := setupTest(true)
	w := do(h, "GET", "/healthz", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestVendorMetrics_Unauthorized(t *testing.T) {
	hd := NewHandler(Deps{Tracer: noop.NewTracerProvider().Tracer("test"), Logger: zerolog.Nop()})
	req := httptest.NewRequest("GET", "/v1/vendors-metrics/aws", nil)
	w := httptest.NewRecorder()

	hd.HandleVendorMetrics(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestVendorMetrics_Success(t *testing.T) {
	h, d := setupTest(true)
	var gotUser int64
	var gotVendor, gotIdentifier string
	d.reconciler.reconcileFunc = func(ctx context.Context, userID int64, v, identifier string) ([]costs.Point, error) {
		gotUser, gotVendor, gotIdentifier = userID, v, identifier
		return []costs.Point{
			{Month: month.New(2024, time.January), Cost: 10.5},
			{Month: month.New(2024, time.February), Cost: 12},
		}, nil
	}

	w := do(h, "GET", "/v1/vendors-metrics/datadog?identifier=prod", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if gotUser != 7 || gotVendor != "datadog" || gotIdentifier != "prod" {
		t.Errorf("Unexpected reconcile args: %d %s %s", gotUser, gotVendor, gotIdentifier)
	}
	data := decodeBody(t, w)["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(data))
	}
	first := data[0].(map[string]any)
	if first["month"] != "01-2024" || first["cost"] != 10.5 {
		t.Errorf("Unexpected first point: %v", first)
	}
}

func TestVendorMetrics_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", vendor.UnsupportedVendor("gcp"), http.StatusBadRequest},
		{"not configured", vendor.ErrConfigurationNotFound, http.StatusNotFound},
		{"fetch", &vendor.FetchError{Key: costs.Key{Vendor: "aws"}, Err: errors.New("boom")}, http.StatusBadGateway},
		{"storage", &costs.StorageError{Op: "upsert", Err: errors.New("disk")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, d := setupTest(true)
			d.reconciler.reconcileFunc = func(context.Context, int64, string, string) ([]costs.Point, error) {
				return nil, tc.err
			}

			w := do(h, "GET", "/v1/vendors-metrics/aws", nil)

			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, w.Code)
			}
			if decodeBody(t, w)["error"] == "" {
				t.Errorf("Expected error message")
			}
		})
	}
}

func TestVendorMetrics_RateLimited(t *testing.T) {
	h, _ := setupTest(false)
	w := do(h, "GET", "/v1/vendors-metrics/aws", nil)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "rate limit exceeded" {
		t.Errorf("Expected rate limit exceeded error")
	}
	if w.Header().Get("Retry-After") != "60s" {
		t.Errorf("Expected Retry-After: 60s header, got %s", w.Header().Get("Retry-After"))
	}
}

func TestVendorForecast_Success(t *testing.T) {
	h, d := setupTest(true)
	d.reconciler.reconcileFunc = func(context.Context, int64, string, string) ([]costs.Point, error) {
		return []costs.Point{
			{Month: month.New(2024, time.January), Cost: 100},
			{Month: month.New(2024, time.February), Cost: 200},
		}, nil
	}

	w := do(h, "GET", "/v1/vendors-forecast/aws?months=1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := decodeBody(t, w)["data"].(map[string]any)
	points := data["forecast_data"].([]any)
	if len(points) != 1 {
		t.Fatalf("Expected 1 forecast point, got %d", len(points))
	}
	p := points[0].(map[string]any)
	if p["month"] != "03-2024" || p["cost"] != 400.0 {
		t.Errorf("Unexpected forecast point: %v", p)
	}
}

func TestVendorForecast_InvalidMonths(t *testing.T) {
	h, _ := setupTest(true)
	for _, q := range []string{"0", "25", "abc"} {
		w := do(h, "GET", "/v1/vendors-forecast/aws?months="+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("months=%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestConfigureDatadog_Success(t *testing.T) {
	h, d := setupTest(true)
	d.configs.configureFunc = func(v, identifier string) (*configuration.Configuration, string, error) {
		return &configuration.Configuration{ID: 3, Identifier: identifier, Settings: configuration.DatadogSettings{}}, "Datadog configuration created successfully", nil
	}

	w := do(h, "POST", "/v1/configuration/datadog", map[string]string{"api_key": "a", "app_key": "b"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["type"] != "datadog" || resp["message"] != "Datadog configuration created successfully" || resp["id"] != 3.0 {
		t.Errorf("Unexpected response: %v", resp)
	}
}

func TestConfigureAWS_ValidationFailure(t *testing.T) {
	h, _ := setupTest(true)
	w := do(h, "POST", "/v1/configuration/aws", map[string]string{"aws_access_key_id": "a"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["error"].(string); !strings.Contains(msg, "SecretAccessKey") {
		t.Errorf("Expected validation error naming SecretAccessKey, got %q", msg)
	}
}

func TestConfigure_InvalidBody(t *testing.T) {
	h, _ := setupTest(true)
	w := do(h, "POST", "/v1/configuration/datadog", `{invalid json}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "invalid request body" {
		t.Errorf("Expected invalid request body error")
	}
}

func TestListConfigurations_EmptyIsList(t *testing.T) {
	h, _ := setupTest(true)
	w := do(h, "GET", "/v1/configuration/list", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("Expected empty data list, got %s", w.Body.String())
	}
}

func TestDeleteConfiguration(t *testing.T) {
	h, d := setupTest(true)
	w := do(h, "DELETE", "/v1/configuration/aws/Default%20Configuration", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	want := costs.Key{UserID: 7, Vendor: "aws", Identifier: "Default Configuration"}
	if len(d.configs.removed) != 1 || d.configs.removed[0] != want {
		t.Errorf("Expected removal of %v, got %v", want, d.configs.removed)
	}

	w = do(h, "DELETE", "/v1/configuration/gcp/x", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown vendor, got %d", w.Code)
	}
}

func TestSaveBudgetPlan(t *testing.T) {
	h, d := setupTest(true)
	body := map[string]any{
		"vendor":  "aws",
		"budgets": []map[string]any{{"month": "01-2025", "amount": 500}},
	}

	w := do(h, "POST", "/v1/budget-plans", body)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(d.budgets.saved) != 1 || d.budgets.saved[0].Month != month.New(2025, time.January) {
		t.Errorf("Unexpected saved entries: %v", d.budgets.saved)
	}
	if decodeBody(t, w)["status"] != "success" {
		t.Errorf("Expected status success")
	}
}

func TestSaveBudgetPlan_Invalid(t *testing.T) {
	h, d := setupTest(true)

	w := do(h, "POST", "/v1/budget-plans", map[string]any{
		"vendor":  "aws",
		"budgets": []map[string]any{{"month": "2025-13", "amount": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad month, got %d", w.Code)
	}

	w = do(h, "POST", "/v1/budget-plans", map[string]any{
		"vendor":  "aws",
		"budgets": []map[string]any{{"month": "01-2025", "amount": -5}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative amount, got %d", w.Code)
	}

	d.budgets.saveErr = budget.ErrInvalidVendor
	w = do(h, "POST", "/v1/budget-plans", map[string]any{"vendor": "gcp", "budgets": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid vendor, got %d", w.Code)
	}
}

func TestUpdateBudgetPlan_NotFound(t *testing.T) {
	h, _ := setupTest(true)
	w := do(h, "PUT", "/v1/budget-plans/99", map[string]any{"vendor": "aws", "budgets": []any{}})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = do(h, "PUT", "/v1/budget-plans/abc", map[string]any{"vendor": "aws", "budgets": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", w.Code)
	}
}

func TestBatchUpdate_AlwaysOK(t *testing.T) {
	h, d := setupTest(true)
	d.batch.result = worker.Result{
		Success: []string{"AWS metrics updated for user 1, config a"},
		Failed:  []string{"Failed to update Datadog metrics for user 2, config b: boom"},
	}

	w := do(h, "POST", "/v1/vendors-metrics/batch", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if len(resp["success"].([]any)) != 1 || len(resp["failed"].([]any)) != 1 {
		t.Errorf("Unexpected batch response: %v", resp)
	}
}

func TestJobs_ErrorMapping(t *testing.T) {
	h, _ := setupTest(true)

	if w := do(h, "POST", "/v1/jobs", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
	if w := do(h, "GET", "/v1/jobs/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRateLimit_BatchChargedAsMany(t *testing.T) {
	h, d := setupTest(true)

	do(h, "GET", "/v1/configuration/list", nil)
	do(h, "POST", "/v1/vendors-metrics/batch", nil)

	if len(d.limiter.charged) != 2 {
		t.Fatalf("Expected 2 limiter calls, got %d", len(d.limiter.charged))
	}
	if d.limiter.charged[0] != ratelimit.RequestCost {
		t.Errorf("Expected list to cost %d, got %d", ratelimit.RequestCost, d.limiter.charged[0])
	}
	if d.limiter.charged[1] != ratelimit.BatchCost {
		t.Errorf("Expected batch to cost %d, got %d", ratelimit.BatchCost, d.limiter.charged[1])
	}
}

func TestCORS_PreflightSkipsAuth(t *testing.T) {
	hd := NewHandler(Deps{
		Tracer:         noop.NewTracerProvider().Tracer("test"),
		AllowedOrigins: []string{"https://dash.example.com"},
		Logger:         zerolog.Nop(),
	})
	denyAll := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
	h := NewRouter(hd, denyAll)

	req := httptest.NewRequest(http.MethodOptions, "/v1/vendors-metrics/aws", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Expected allowed origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Expected Authorization in allowed headers, got %q", got)
	}
}

func TestCORS_ResponseHeaders(t *testing.T) {
	h, _ := setupTest(true)

	req := httptest.NewRequest(http.MethodGet, "/v1/configuration/list", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Expected allowed origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed, got %q", got)
	}
}

func TestCORS_UnknownOrigin(t *testing.T) {
	h, _ := setupTest(true)

	req := httptest.NewRequest(http.MethodGet, "/v1/configuration/list", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS headers for unknown origin, got %q", got)
	}
}
