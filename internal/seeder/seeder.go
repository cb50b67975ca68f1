package seeder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/budget"
	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

const (
	DevSubject = "dev|seed-user"
	DevEmail   = "dev@vendor-spend.local"
	DevName    = "Dev User"

	devTokenTTL     = 24 * time.Hour
	devMonthlyLimit = 1000
)

var devProfile = auth.Profile{Email: DevEmail, Name: DevName}

type UserStore interface {
	GetOrCreateBySubject(ctx context.Context, sub string, p auth.Profile) (*auth.User, error)
}

type PlanStore interface {
	List(ctx context.Context, userID int64, vendor string) ([]budget.Plan, error)
	Save(ctx context.Context, userID int64, vendor string, budgets []budget.Entry) (*budget.Plan, error)
}

// Seed creates the development user and, if the user has none yet, a
// default AWS budget plan for the next twelve months. It is safe to run
// on every start. When verifier can issue HMAC tokens a bearer token for
// the user is logged.
func Seed(ctx context.Context, users UserStore, plans PlanStore, verifier *auth.Verifier, now time.Time, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "seeder").Logger()

	u, err := users.GetOrCreateBySubject(ctx, DevSubject, devProfile)
	if err != nil {
		return err
	}
	logger.Info().Int64("user_id", u.ID).Str("sub", u.Sub).Msg("dev user ready")

	existing, err := plans.List(ctx, u.ID, vendor.AWS)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		start := month.Of(now.UTC())
		entries := make([]budget.Entry, 0, 12)
		for i := range 12 {
			entries = append(entries, budget.Entry{Month: start.AddMonths(i), Amount: devMonthlyLimit})
		}
		if _, err := plans.Save(ctx, u.ID, vendor.AWS, entries); err != nil {
			return err
		}
		logger.Info().Msg("default budget plan created")
	} else {
		logger.Info().Msg("budget plan already exists, skipping")
	}

	if verifier != nil {
		token, err := verifier.IssueDevToken(DevSubject, devProfile, devTokenTTL)
		if err != nil {
			logger.Info().Err(err).Msg("no dev token issued")
			return nil
		}
		logger.Info().Str("token", token).Msg("dev bearer token")
	}
	return nil
}
