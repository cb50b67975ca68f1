package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vnmchuo/vendor-spend/internal/month"
)

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertSQL = `
	INSERT INTO vendor_metrics (user_id, vendor, identifier, month, cost, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (user_id, vendor, identifier, month)
	DO UPDATE SET cost = EXCLUDED.cost, updated_at = EXCLUDED.updated_at
`

func (s *PostgresStore) Find(ctx context.Context, key Key) ([]Record, error) {
	query := `
		SELECT id, month, cost, created_at, updated_at
		FROM vendor_metrics
		WHERE user_id = $1 AND vendor = $2 AND identifier = $3
	`
	rows, err := s.db.Query(ctx, query, key.UserID, key.Vendor, key.Identifier)
	if err != nil {
		return nil, storageErr("find", fmt.Errorf("failed to query vendor metrics: %w", err))
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r   Record
			raw string
		)
		if err := rows.Scan(&r.ID, &raw, &r.Cost, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, storageErr("find", fmt.Errorf("failed to scan vendor metric: %w", err))
		}
		if r.Month, err = month.Parse(raw); err != nil {
			return nil, storageErr("find", err)
		}
		r.Key = key
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("find", fmt.Errorf("error iterating vendor metrics: %w", err))
	}

	return records, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, key Key, points []Point, at time.Time) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storageErr("upsert", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(upsertSQL, key.UserID, key.Vendor, key.Identifier, p.Month.String(), p.Cost, at)
	}

	br := tx.SendBatch(ctx, batch)
	for range points {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return storageErr("upsert", fmt.Errorf("failed to upsert vendor metric: %w", err))
		}
	}
	if err := br.Close(); err != nil {
		return storageErr("upsert", fmt.Errorf("failed to close batch: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("upsert", fmt.Errorf("failed to commit vendor metrics: %w", err))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	query := `DELETE FROM vendor_metrics WHERE user_id = $1 AND vendor = $2 AND identifier = $3`
	if _, err := s.db.Exec(ctx, query, key.UserID, key.Vendor, key.Identifier); err != nil {
		return storageErr("delete", fmt.Errorf("failed to delete vendor metrics: %w", err))
	}
	return nil
}
