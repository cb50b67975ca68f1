// Package budget stores per-vendor monthly budget plans.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vnmchuo/vendor-spend/internal/month"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
)

const DefaultType = "default"

var (
	ErrInvalidVendor   = errors.New("invalid vendor")
	ErrPlanNotFound    = errors.New("budget plan not found")
	ErrVendorImmutable = errors.New("cannot change vendor for existing budget plan")
)

type Entry struct {
	Month  month.Month `json:"month"`
	Amount float64     `json:"amount"`
}

type Plan struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Vendor    string    `json:"vendor"`
	Type      string    `json:"type"`
	Budgets   []Entry   `json:"budgets"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	// Save inserts p or replaces the budgets of the plan with the same
	// (user, vendor, type), filling in ID and timestamps.
	Save(ctx context.Context, p *Plan) error
	List(ctx context.Context, userID int64, vendor string) ([]Plan, error)
	Get(ctx context.Context, userID, id int64) (*Plan, error)
	UpdateBudgets(ctx context.Context, p *Plan) error
	Delete(ctx context.Context, userID, id int64) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func normalizeVendor(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if !vendor.IsKnown(v) {
		return "", fmt.Errorf("%w: %s", ErrInvalidVendor, v)
	}
	return v, nil
}

// Save creates or replaces the user's default plan for vendorTag.
func (s *Service) Save(ctx context.Context, userID int64, vendorTag string, budgets []Entry) (*Plan, error) {
	v, err := normalizeVendor(vendorTag)
	if err != nil {
		return nil, err
	}
	p := &Plan{UserID: userID, Vendor: v, Type: DefaultType, Budgets: budgets}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the user's plans, filtered by vendor when one is given.
func (s *Service) List(ctx context.Context, userID int64, vendorTag string) ([]Plan, error) {
	if vendorTag != "" {
		v, err := normalizeVendor(vendorTag)
		if err != nil {
			return nil, err
		}
		vendorTag = v
	}
	return s.store.List(ctx, userID, vendorTag)
}

func (s *Service) Update(ctx context.Context, userID, id int64, vendorTag string, budgets []Entry) (*Plan, error) {
	p, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(vendorTag) != p.Vendor {
		return nil, ErrVendorImmutable
	}
	p.Budgets = budgets
	if err := s.store.UpdateBudgets(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.store.Delete(ctx, userID, id)
}
