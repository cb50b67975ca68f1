package costs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vnmchuo/vendor-spend/internal/month"
)

// SQLiteStore backs local, single-user runs of the CLI. Timestamps are kept
// as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Find(ctx context.Context, key Key) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, cost, created_at, updated_at
		FROM vendor_metrics
		WHERE user_id = ? AND vendor = ? AND identifier = ?`,
		key.UserID, key.Vendor, key.Identifier,
	)
	if err != nil {
		return nil, storageErr("find", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                         Record
			rawMonth, created, updated string
		)
		if err := rows.Scan(&r.ID, &rawMonth, &r.Cost, &created, &updated); err != nil {
			return nil, storageErr("find", err)
		}
		if r.Month, err = month.Parse(rawMonth); err != nil {
			return nil, storageErr("find", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, storageErr("find", fmt.Errorf("parse created_at: %w", err))
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, storageErr("find", fmt.Errorf("parse updated_at: %w", err))
		}
		r.Key = key
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("find", err)
	}
	return records, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, key Key, points []Point, at time.Time) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vendor_metrics (user_id, vendor, identifier, month, cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, vendor, identifier, month)
		DO UPDATE SET cost = excluded.cost, updated_at = excluded.updated_at`)
	if err != nil {
		return storageErr("upsert", err)
	}
	defer stmt.Close()

	ts := at.UTC().Format(time.RFC3339Nano)
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, key.UserID, key.Vendor, key.Identifier, p.Month.String(), p.Cost, ts, ts); err != nil {
			return storageErr("upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vendor_metrics WHERE user_id = ? AND vendor = ? AND identifier = ?`,
		key.UserID, key.Vendor, key.Identifier,
	)
	if err != nil {
		return storageErr("delete", err)
	}
	return nil
}
