// Package reconcile keeps the cached monthly cost series for a vendor
// configuration complete and fresh over a trailing twelve month window.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultStaleness    = 24 * time.Hour

	lookback = 365 * 24 * time.Hour
	// Series older than this many calendar years are never returned.
	retainYears = 2
)

// Fetcher is the ranged vendor lookup. *vendor.Registry implements it.
type Fetcher interface {
	Supports(vendor string) bool
	GetCosts(ctx context.Context, key costs.Key, rng *month.Range) ([]costs.Point, error)
}

type Reconciler struct {
	store        costs.Store
	fetcher      Fetcher
	locker       Locker
	fetchTimeout time.Duration
	staleness    time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

type Option func(*Reconciler)

func WithLocker(l Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.fetchTimeout = d }
}

func WithStaleness(d time.Duration) Option {
	return func(r *Reconciler) { r.staleness = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l.With().Str("component", "reconcile").Logger() }
}

func New(store costs.Store, fetcher Fetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:        store,
		fetcher:      fetcher,
		locker:       NewLocalLocker(),
		fetchTimeout: DefaultFetchTimeout,
		staleness:    DefaultStaleness,
		now:          time.Now,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan is the outcome of comparing cached records against the window.
type Plan struct {
	Window  month.Range
	Missing []month.Month
	// Fetch is nil when nothing needs to be requested upstream.
	Fetch *month.Range
}

// plan decides which months must be fetched given the cached records.
func (r *Reconciler) plan(records []costs.Record, now time.Time) Plan {
	now = now.UTC()
	current := month.Of(now)
	window := month.Range{From: month.Of(now.Add(-lookback)), To: current}

	present := make(map[month.Month]costs.Record, len(records))
	for _, rec := range records {
		present[rec.Month] = rec
	}

	var missing []month.Month
	currentMissing := false
	for _, m := range month.Span(window.From, window.To) {
		rec, ok := present[m]
		stale := ok && m == current && now.Sub(rec.UpdatedAt) > r.staleness
		if !ok || stale {
			missing = append(missing, m)
			if m == current {
				currentMissing = true
			}
		}
	}

	p := Plan{Window: window, Missing: missing}
	if len(missing) == 0 {
		return p
	}

	earliest := slices.MinFunc(missing, month.Month.Compare)
	latest := slices.MaxFunc(missing, month.Month.Compare)
	if currentMissing {
		earliest = earliest.Prev()
		if earliest.Before(window.From) {
			earliest = window.From
		}
	}
	p.Fetch = &month.Range{From: earliest, To: latest}
	return p
}

// Reconcile makes sure every month of the trailing window is cached and the
// current month is fresh, then returns the cached series in calendar order.
// At most one upstream call is made.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, vendorTag, identifier string) ([]costs.Point, error) {
	if !r.fetcher.Supports(vendorTag) {
		return nil, vendor.UnsupportedVendor(vendorTag)
	}
	if identifier == "" {
		identifier = costs.DefaultIdentifier
	}
	key := costs.Key{UserID: userID, Vendor: vendorTag, Identifier: identifier}

	ctx, span := telemetry.Tracer("reconcile").Start(ctx, "reconcile.series")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.String("vendor", vendorTag),
		attribute.String("identifier", identifier),
	)

	points, outcome, err := r.reconcile(ctx, key)
	telemetry.RecordReconcile(vendorTag, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		r.logger.Error().Err(err).Str("key", key.String()).Msg("reconcile failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("points", len(points)))
	return points, nil
}

func (r *Reconciler) reconcile(ctx context.Context, key costs.Key) ([]costs.Point, string, error) {
	unlock, err := r.locker.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, "error", fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	records, err := r.store.Find(ctx, key)
	if err != nil {
		return nil, "error", err
	}

	now := r.now()
	p := r.plan(records, now)
	outcome := "cached"

	if p.Fetch != nil {
		outcome = "fetched"
		r.logger.Debug().
			Str("key", key.String()).
			Int("missing", len(p.Missing)).
			Str("range", p.Fetch.String()).
			Msg("fetching missing months")

		fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		fetched, err := r.fetcher.GetCosts(fetchCtx, key, p.Fetch)
		cancel()
		if err != nil {
			return nil, "error", wrapFetch(key, err)
		}

		if len(fetched) > 0 {
			if err := r.store.Upsert(ctx, key, fetched, now.UTC()); err != nil {
				return nil, "error", err
			}
		}

		records, err = r.store.Find(ctx, key)
		if err != nil {
			return nil, "error", err
		}
	}

	return series(records, now), outcome, nil
}

// series sorts records by month and drops anything older than the retention
// horizon.
func series(records []costs.Record, now time.Time) []costs.Point {
	minYear := now.UTC().Year() - retainYears
	out := make([]costs.Point, 0, len(records))
	for _, rec := range records {
		if rec.Month.Year > minYear {
			out = append(out, rec.Point())
		}
	}
	slices.SortFunc(out, func(a, b costs.Point) int {
		return a.Month.Compare(b.Month)
	})
	return out
}

func wrapFetch(key costs.Key, err error) error {
	if errors.Is(err, vendor.ErrConfigurationNotFound) || errors.Is(err, vendor.ErrUnsupportedVendor) {
		return err
	}
	return &vendor.FetchError{Key: key, Err: err}
}

func lockKey(key costs.Key) string {
	return fmt.Sprintf("reconcile:%d:%s:%s", key.UserID, key.Vendor, key.Identifier)
}
