package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, sub, email, name, picture, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Sub, &u.Email, &u.Name, &u.Picture, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetOrCreateBySubject(ctx context.Context, sub string, p Profile) (*User, error) {
	// Empty claims keep the stored value. The update always runs so that
	// RETURNING yields the existing row.
	query := `
		INSERT INTO users (sub, email, name, picture)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sub) DO UPDATE
		SET email   = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		    name    = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		    picture = COALESCE(NULLIF(EXCLUDED.picture, ''), users.picture),
		    updated_at = CASE
		        WHEN (COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		              COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		              COALESCE(NULLIF(EXCLUDED.picture, ''), users.picture))
		             IS DISTINCT FROM (users.email, users.name, users.picture)
		        THEN now() ELSE users.updated_at END
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, sub, p.Email, p.Name, p.Picture))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
