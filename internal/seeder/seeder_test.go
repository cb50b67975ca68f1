package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/budget"
)

type users struct{ calls int }

func (u *users) GetOrCreateBySubject(_ context.Context, sub string, p auth.Profile) (*auth.User, error) {
	u.calls++
	return &auth.User{ID: 1, Sub: sub, Email: p.Email, Name: p.Name}, nil
}

type plans struct{ saved []budget.Plan }

func (p *plans) List(_ context.Context, userID int64, vendor string) ([]budget.Plan, error) {
	return p.saved, nil
}

func (p *plans) Save(_ context.Context, userID int64, vendor string, entries []budget.Entry) (*budget.Plan, error) {
	plan := budget.Plan{ID: 1, UserID: userID, Vendor: vendor, Budgets: entries}
	p.saved = append(p.saved, plan)
	return &plan, nil
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	u, p := &users{}, &plans{}
	now := time.Date(2024, time.November, 3, 0, 0, 0, 0, time.UTC)
	v := auth.NewHMACVerifier("secret", "", "")

	require.NoError(t, Seed(ctx, u, p, v, now, zerolog.Nop()))
	require.NoError(t, Seed(ctx, u, p, v, now, zerolog.Nop()))

	assert.Equal(t, 2, u.calls)
	require.Len(t, p.saved, 1)
	entries := p.saved[0].Budgets
	require.Len(t, entries, 12)
	assert.Equal(t, "11-2024", entries[0].Month.String())
	assert.Equal(t, "10-2025", entries[11].Month.String())
}
