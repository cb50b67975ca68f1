package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresVault struct {
	db  DB
	enc *Encryptor
}

func NewPostgresVault(db DB, enc *Encryptor) *PostgresVault {
	return &PostgresVault{db: db, enc: enc}
}

func (v *PostgresVault) Put(ctx context.Context, userID int64, name, value string) (string, error) {
	sealed, err := v.enc.Seal(value)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret: %w", err)
	}

	id := uuid.New().String()
	query := `INSERT INTO secrets (id, user_id, name, ciphertext) VALUES ($1, $2, $3, $4)`
	if _, err := v.db.Exec(ctx, query, id, userID, name, sealed); err != nil {
		return "", fmt.Errorf("failed to store secret: %w", err)
	}
	return id, nil
}

func (v *PostgresVault) Get(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}

	var sealed []byte
	err := v.db.QueryRow(ctx, `SELECT ciphertext FROM secrets WHERE id = $1`, id).Scan(&sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get secret: %w", err)
	}

	value, err := v.enc.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to open secret %s: %w", id, err)
	}
	return value, nil
}

func (v *PostgresVault) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := v.db.Exec(ctx, `DELETE FROM secrets WHERE id = ANY($1::uuid[])`, ids); err != nil {
		return fmt.Errorf("failed to delete secrets: %w", err)
	}
	return nil
}
