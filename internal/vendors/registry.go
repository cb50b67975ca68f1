package vendor

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
)

// DefaultLookback is used when a caller asks for costs without a range.
const DefaultLookback = 12

// CredentialResolver turns a configuration key into vendor credentials,
// returning ErrConfigurationNotFound when the user never configured it.
type CredentialResolver interface {
	Resolve(ctx context.Context, key costs.Key) (Credentials, error)
}

// Registry maps vendor tags to sources and guards each vendor with its own
// circuit breaker.
type Registry struct {
	sources  map[string]Source
	breakers map[string]*gobreaker.CircuitBreaker
	creds    CredentialResolver
	now      func() time.Time
}

func NewRegistry(creds CredentialResolver, sources ...Source) *Registry {
	r := &Registry{
		sources:  make(map[string]Source),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		creds:    creds,
		now:      time.Now,
	}
	for _, s := range sources {
		settings := gobreaker.Settings{
			Name:        s.Vendor(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// One tenant's bad keys must not open the breaker for everyone.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled)
			},
		}
		r.sources[s.Vendor()] = s
		r.breakers[s.Vendor()] = gobreaker.NewCircuitBreaker(settings)
	}
	return r
}

func (r *Registry) Supports(vendor string) bool {
	_, ok := r.sources[vendor]
	return ok
}

// GetCosts fetches monthly costs for the configuration identified by key.
// A nil range means the trailing DefaultLookback months. Returned points are
// clipped to the range, and a month whose credits exceed its charges is
// reported as zero.
func (r *Registry) GetCosts(ctx context.Context, key costs.Key, rng *month.Range) ([]costs.Point, error) {
	src, ok := r.sources[key.Vendor]
	if !ok {
		return nil, UnsupportedVendor(key.Vendor)
	}

	window := r.defaultRange()
	if rng != nil {
		window = *rng
	}

	ctx, span := telemetry.Tracer("vendor").Start(ctx, "vendor.get_costs")
	defer span.End()
	span.SetAttributes(
		attribute.String("vendor", key.Vendor),
		attribute.String("identifier", key.Identifier),
		attribute.String("range", window.String()),
	)

	creds, err := r.creds.Resolve(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve credentials")
		return nil, err
	}

	start := time.Now()
	result, err := r.breakers[key.Vendor].Execute(func() (interface{}, error) {
		return src.MonthlyCosts(ctx, creds, window)
	})
	telemetry.ObserveVendorFetch(key.Vendor, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch costs")
		return nil, err
	}

	points := result.([]costs.Point)
	clipped := make([]costs.Point, 0, len(points))
	for _, p := range points {
		if !window.Contains(p.Month) {
			continue
		}
		if p.Cost < 0 {
			span.AddEvent("negative cost floored", trace.WithAttributes(
				attribute.String("month", p.Month.String()),
				attribute.Float64("cost", p.Cost),
			))
			p.Cost = 0
		}
		clipped = append(clipped, p)
	}
	span.SetAttributes(attribute.Int("points", len(clipped)))
	return clipped, nil
}

// State reports the breaker state for a vendor, for health output.
func (r *Registry) State(vendor string) (gobreaker.State, bool) {
	cb, ok := r.breakers[vendor]
	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}

func (r *Registry) defaultRange() month.Range {
	current := month.Of(r.now().UTC())
	return month.Range{From: current.AddMonths(-DefaultLookback), To: current}
}
