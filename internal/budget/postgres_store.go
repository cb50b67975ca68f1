package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const planColumns = `id, user_id, vendor, type, budgets, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	var raw []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.Vendor, &p.Type, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Budgets); err != nil {
		return nil, fmt.Errorf("decode budgets for plan %d: %w", p.ID, err)
	}
	return &p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p *Plan) error {
	raw, err := json.Marshal(p.Budgets)
	if err != nil {
		return fmt.Errorf("encode budgets: %w", err)
	}

	query := `
		INSERT INTO budget_plans (user_id, vendor, type, budgets)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, vendor, type)
		DO UPDATE SET budgets = EXCLUDED.budgets, updated_at = now()
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRow(ctx, query, p.UserID, p.Vendor, p.Type, raw).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save budget plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID int64, vendor string) ([]Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM budget_plans
		WHERE user_id = $1 AND ($2 = '' OR vendor = $2)
		ORDER BY vendor, type
	`
	rows, err := s.db.Query(ctx, query, userID, vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget plans: %w", err)
	}
	return plans, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, id int64) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM budget_plans WHERE id = $1 AND user_id = $2`
	p, err := scanPlan(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get budget plan: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateBudgets(ctx context.Context, p *Plan) error {
	raw, err := json.Marshal(p.Budgets)
	if err != nil {
		return fmt.Errorf("encode budgets: %w", err)
	}
	query := `
		UPDATE budget_plans SET budgets = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3
		RETURNING updated_at
	`
	err = s.db.QueryRow(ctx, query, raw, p.ID, p.UserID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlanNotFound
		}
		return fmt.Errorf("failed to update budget plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM budget_plans WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete budget plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}
