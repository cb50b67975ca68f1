package datadog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

// Credential names resolved from the configuration's secrets.
const (
	CredAPIKey = "api_key"
	CredAppKey = "app_key"
)

type DatadogSource struct {
	baseURL string
	client  *http.Client
}

type historicalCostResponse struct {
	Data []historicalCostEntry `json:"data"`
}

type historicalCostEntry struct {
	Type       string `json:"type"`
	Attributes struct {
		Date      string          `json:"date"`
		OrgName   string          `json:"org_name"`
		TotalCost decimal.Decimal `json:"total_cost"`
	} `json:"attributes"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

func New(baseURL string) *DatadogSource {
	return &DatadogSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (s *DatadogSource) Vendor() string {
	return vendor.Datadog
}

// MonthlyCosts queries the historical cost endpoint. Datadog treats
// end_month as exclusive, so the month after r.To is requested. Entries for
// multiple orgs in the same month are summed.
func (s *DatadogSource) MonthlyCosts(ctx context.Context, creds vendor.Credentials, r month.Range) ([]costs.Point, error) {
	if err := creds.Require(CredAPIKey, CredAppKey); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("start_month", r.From.ISO())
	q.Set("end_month", r.To.Next().ISO())
	endpoint := fmt.Sprintf("%s/api/v2/usage/historical_cost?%s", s.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("DD-API-KEY", creds[CredAPIKey])
	httpReq.Header.Set("DD-APPLICATION-KEY", creds[CredAppKey])

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: datadog api status %d: %s", vendor.ErrUnauthorized, resp.StatusCode, readError(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("datadog api error (status %d): %s", resp.StatusCode, readError(resp.Body))
	}

	var body historicalCostResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode datadog response: %w", err)
	}

	totals := make(map[month.Month]decimal.Decimal)
	var order []month.Month
	for _, e := range body.Data {
		m, err := month.ParseISO(e.Attributes.Date)
		if err != nil {
			return nil, fmt.Errorf("datadog entry date: %w", err)
		}
		if _, seen := totals[m]; !seen {
			order = append(order, m)
		}
		totals[m] = totals[m].Add(e.Attributes.TotalCost)
	}

	month.Sort(order)
	points := make([]costs.Point, 0, len(order))
	for _, m := range order {
		points = append(points, costs.Point{Month: m, Cost: totals[m].Round(2).InexactFloat64()})
	}
	return points, nil
}

func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && len(e.Errors) > 0 {
		return strings.Join(e.Errors, "; ")
	}
	return strings.TrimSpace(string(raw))
}
