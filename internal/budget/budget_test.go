package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/vendor-spend/internal/month"
)

type memStore struct {
	plans  map[int64]*Plan
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{plans: make(map[int64]*Plan)}
}

func (m *memStore) Save(_ context.Context, p *Plan) error {
	for _, existing := range m.plans {
		if existing.UserID == p.UserID && existing.Vendor == p.Vendor && existing.Type == p.Type {
			existing.Budgets = p.Budgets
			*p = *existing
			return nil
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *memStore) List(_ context.Context, userID int64, vendor string) ([]Plan, error) {
	out := []Plan{}
	for _, p := range m.plans {
		if p.UserID == userID && (vendor == "" || p.Vendor == vendor) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, userID, id int64) (*Plan, error) {
	p, ok := m.plans[id]
	if !ok || p.UserID != userID {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateBudgets(_ context.Context, p *Plan) error {
	existing, ok := m.plans[p.ID]
	if !ok {
		return ErrPlanNotFound
	}
	existing.Budgets = p.Budgets
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, id int64) error {
	p, ok := m.plans[id]
	if !ok || p.UserID != userID {
		return ErrPlanNotFound
	}
	delete(m.plans, id)
	return nil
}

func entries(amount float64) []Entry {
	return []Entry{{Month: month.New(2024, time.January), Amount: amount}}
}

func TestSave_CreatesThenReplacesDefaultPlan(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())

	first, err := svc.Save(ctx, 1, "AWS", entries(100))
	require.NoError(t, err)
	assert.Equal(t, "aws", first.Vendor)
	assert.Equal(t, DefaultType, first.Type)

	second, err := svc.Save(ctx, 1, "aws", entries(250))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	plans, err := svc.List(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 250.0, plans[0].Budgets[0].Amount)
}

func TestSave_InvalidVendor(t *testing.T) {
	_, err := NewService(newMemStore()).Save(context.Background(), 1, "gcp", nil)
	assert.ErrorIs(t, err, ErrInvalidVendor)

	_, err = NewService(newMemStore()).List(context.Background(), 1, "gcp")
	assert.ErrorIs(t, err, ErrInvalidVendor)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())
	p, err := svc.Save(ctx, 1, "datadog", entries(10))
	require.NoError(t, err)

	_, err = svc.Update(ctx, 1, p.ID, "aws", entries(20))
	assert.ErrorIs(t, err, ErrVendorImmutable)

	_, err = svc.Update(ctx, 2, p.ID, "datadog", entries(20))
	assert.ErrorIs(t, err, ErrPlanNotFound)

	updated, err := svc.Update(ctx, 1, p.ID, "datadog", entries(20))
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Budgets[0].Amount)
}

func TestDelete_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())
	p, err := svc.Save(ctx, 1, "aws", entries(10))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 2, p.ID), ErrPlanNotFound)
	require.NoError(t, svc.Delete(ctx, 1, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, p.ID), ErrPlanNotFound)
}
