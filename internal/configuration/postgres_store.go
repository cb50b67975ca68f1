package configuration

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
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

func notFound(key costs.Key) error {
	return fmt.Errorf("%w: %s %q", vendor.ErrConfigurationNotFound, key.Vendor, key.Identifier)
}

func (s *PostgresStore) Get(ctx context.Context, key costs.Key) (*Configuration, error) {
	query := `
		SELECT id, settings, created_at, updated_at
		FROM vendor_configurations
		WHERE user_id = $1 AND vendor = $2 AND identifier = $3
	`
	var (
		c   = Configuration{UserID: key.UserID, Identifier: key.Identifier}
		raw []byte
	)
	err := s.db.QueryRow(ctx, query, key.UserID, key.Vendor, key.Identifier).Scan(
		&c.ID, &raw, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	if c.Settings, err = decodeSettings(key.Vendor, raw); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, c *Configuration) (bool, error) {
	raw, err := encodeSettings(c.Settings)
	if err != nil {
		return false, fmt.Errorf("failed to encode settings: %w", err)
	}

	query := `
		INSERT INTO vendor_configurations (user_id, vendor, identifier, settings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, vendor, identifier)
		DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`
	var inserted bool
	err = s.db.QueryRow(ctx, query, c.UserID, c.Vendor(), c.Identifier, raw).Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &inserted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert configuration: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int64) ([]Configuration, error) {
	query := `
		SELECT id, vendor, identifier, settings, created_at, updated_at
		FROM vendor_configurations
		WHERE user_id = $1
		ORDER BY vendor, identifier
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	var configs []Configuration
	for rows.Next() {
		var (
			c         = Configuration{UserID: userID}
			vendorTag string
			raw       []byte
		)
		if err := rows.Scan(&c.ID, &vendorTag, &c.Identifier, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		if c.Settings, err = decodeSettings(vendorTag, raw); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configurations: %w", err)
	}
	return configs, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key costs.Key) error {
	query := `DELETE FROM vendor_configurations WHERE user_id = $1 AND vendor = $2 AND identifier = $3`
	tag, err := s.db.Exec(ctx, query, key.UserID, key.Vendor, key.Identifier)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(key)
	}
	return nil
}
