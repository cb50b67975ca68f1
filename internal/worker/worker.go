// Package worker refreshes every configured cost series in the background.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// ConfigLister returns a user's configuration keys ordered by vendor then
// identifier.
type ConfigLister interface {
	Keys(ctx context.Context, userID int64) ([]costs.Key, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, userID int64, vendor, identifier string) ([]costs.Point, error)
}

// Result collects one message per configuration. Failed also receives a
// single entry if the batch could not be enumerated.
type Result struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}

type Coordinator struct {
	users       UserLister
	configs     ConfigLister
	reconciler  Reconciler
	concurrency int
	logger      zerolog.Logger
}

func NewCoordinator(users UserLister, configs ConfigLister, r Reconciler, concurrency int, logger zerolog.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		users:       users,
		configs:     configs,
		reconciler:  r,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "batch").Logger(),
	}
}

// RunAll reconciles every configuration of every user. Individual failures
// are recorded and never stop sibling items. Messages keep enumeration
// order regardless of concurrency.
func (c *Coordinator) RunAll(ctx context.Context) Result {
	ctx, span := telemetry.Tracer("worker").Start(ctx, "batch.run_all")
	defer span.End()

	res := Result{Success: []string{}, Failed: []string{}}

	items, err := c.enumerate(ctx)
	if err != nil {
		msg := fmt.Sprintf("Batch update failed: %v", err)
		c.logger.Error().Err(err).Msg(msg)
		res.Failed = append(res.Failed, msg)
		return res
	}
	span.SetAttributes(attribute.Int("configurations", len(items)))

	// errgroup.WithContext is not used: one failure must not cancel the rest.
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range items {
		if items[i].err != nil {
			continue
		}
		g.Go(func() error {
			k := items[i].key
			_, items[i].err = c.reconciler.Reconcile(ctx, k.UserID, k.Vendor, k.Identifier)
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range items {
		if it.listErr {
			msg := fmt.Sprintf("Failed to list configurations for user %d: %v", it.key.UserID, it.err)
			c.logger.Error().Msg(msg)
			res.Failed = append(res.Failed, msg)
			continue
		}
		name := vendor.DisplayName(it.key.Vendor)
		if it.err != nil {
			msg := fmt.Sprintf("Failed to update %s metrics for user %d, config %s: %v", name, it.key.UserID, it.key.Identifier, it.err)
			c.logger.Error().Msg(msg)
			res.Failed = append(res.Failed, msg)
			continue
		}
		res.Success = append(res.Success, fmt.Sprintf("%s metrics updated for user %d, config %s", name, it.key.UserID, it.key.Identifier))
	}

	telemetry.RecordBatch(len(res.Success), len(res.Failed))
	c.logger.Info().Int("success", len(res.Success)).Int("failed", len(res.Failed)).Msg("batch update finished")
	return res
}

// item is one unit of batch work. A user whose configurations could not be
// listed becomes a single item with listErr set.
type item struct {
	key     costs.Key
	err     error
	listErr bool
}

// enumerate fails only when the user list itself is unavailable.
func (c *Coordinator) enumerate(ctx context.Context) ([]item, error) {
	userIDs, err := c.users.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var items []item
	for _, id := range userIDs {
		keys, err := c.configs.Keys(ctx, id)
		if err != nil {
			items = append(items, item{key: costs.Key{UserID: id}, err: err, listErr: true})
			continue
		}
		for _, k := range keys {
			items = append(items, item{key: k})
		}
	}
	return items, nil
}

// Scheduler runs the coordinator on a fixed interval until its context is
// cancelled.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      zerolog.Logger
}

func NewScheduler(c *Coordinator, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{coordinator: c, interval: interval, logger: logger}
}

// Run starts with an immediate pass when runNow is set.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	if runNow {
		s.coordinator.RunAll(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.coordinator.RunAll(ctx)
		}
	}
}
