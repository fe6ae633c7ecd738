// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/emberfall/emberfall/internal/identity"
)

// poolIface abstracts the pgx pool so the repository can run against pgxmock
// in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRepository implements identity.RecordRepository using PostgreSQL.
type PostgresRepository struct {
	pool poolIface
}

// NewPostgresRepository connects to the database, retrying the initial ping
// with fibonacci backoff, and runs pending migrations.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	migrator, err := NewMigrator(databaseURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer migrator.Close() //nolint:errcheck // close error does not invalidate applied migrations

	if err := migrator.Up(); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresRepositoryWithPool wraps an existing pool. Used by tests.
func NewPostgresRepositoryWithPool(pool poolIface) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ identity.RecordRepository = (*PostgresRepository)(nil)

// Create stores a new record.
func (r *PostgresRepository) Create(ctx context.Context, rec identity.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (uuid, username, password_hash, moderator)
		VALUES ($1, $2, $3, $4)
	`,
		rec.UUID,
		rec.Username,
		rec.PasswordHash,
		rec.Moderator,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("RECORD_CREATE_FAILED").
				With("username", rec.Username).
				Wrap(identity.ErrUsernameTaken)
		}
		return oops.Code("RECORD_CREATE_FAILED").
			With("operation", "insert player").
			With("username", rec.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves a record by username (case-insensitive).
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (identity.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT uuid, username, password_hash, moderator
		FROM players
		WHERE LOWER(username) = LOWER($1)
	`, username)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
			With("username", username).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return identity.Record{}, oops.Code("RECORD_GET_FAILED").
			With("operation", "get record by username").
			With("username", username).
			Wrap(err)
	}
	return rec, nil
}

// GetByUUID retrieves a record by player UUID.
func (r *PostgresRepository) GetByUUID(ctx context.Context, uuid string) (identity.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT uuid, username, password_hash, moderator
		FROM players
		WHERE uuid = $1
	`, uuid)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return identity.Record{}, oops.Code("RECORD_GET_FAILED").
			With("operation", "get record by uuid").
			With("uuid", uuid).
			Wrap(err)
	}
	return rec, nil
}

// UpdatePassword replaces only the password hash for a player.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, uuid, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE players SET password_hash = $2 WHERE uuid = $1
	`, uuid, passwordHash)
	if err != nil {
		return oops.Code("RECORD_UPDATE_FAILED").
			With("operation", "update password").
			With("uuid", uuid).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Delete removes a record.
func (r *PostgresRepository) Delete(ctx context.Context, uuid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM players WHERE uuid = $1`, uuid)
	if err != nil {
		return oops.Code("RECORD_DELETE_FAILED").
			With("uuid", uuid).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Close closes the underlying pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (identity.Record, error) {
	var rec identity.Record
	err := row.Scan(&rec.UUID, &rec.Username, &rec.PasswordHash, &rec.Moderator)
	if err != nil {
		return identity.Record{}, err //nolint:wrapcheck // callers wrap with context
	}
	return rec, nil
}
