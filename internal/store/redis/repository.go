// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

// Package redis provides a Redis-backed identity.RecordRepository.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/emberfall/emberfall/internal/identity"
)

const connectTimeout = 5 * time.Second

// Config holds Redis connection settings.
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379).
	URL string

	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Repository implements identity.RecordRepository on Redis. Records are
// stored as JSON under a per-UUID key, with a username index for lookups.
type Repository struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Repository, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "parse redis url").Wrap(err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	return &Repository{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Repository {
	return &Repository{client: client}
}

var _ identity.RecordRepository = (*Repository)(nil)

// Create stores a new record and its username index entry.
func (r *Repository) Create(ctx context.Context, rec identity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("RECORD_CREATE_FAILED").
			With("operation", "marshal record").
			With("username", rec.Username).
			Wrap(err)
	}

	// SETNX on the username index doubles as the uniqueness check.
	claimed, err := r.client.SetNX(ctx, usernameIndexKey(rec.Username), rec.UUID, 0).Result()
	if err != nil {
		return oops.Code("RECORD_CREATE_FAILED").
			With("operation", "claim username").
			With("username", rec.Username).
			Wrap(err)
	}
	if !claimed {
		return oops.Code("RECORD_CREATE_FAILED").
			With("username", rec.Username).
			Wrap(identity.ErrUsernameTaken)
	}

	if err := r.client.Set(ctx, recordKey(rec.UUID), data, 0).Err(); err != nil {
		// Roll the index claim back so the username is not leaked.
		_ = r.client.Del(ctx, usernameIndexKey(rec.Username)).Err() //nolint:errcheck // best effort rollback
		return oops.Code("RECORD_CREATE_FAILED").
			With("operation", "store record").
			With("username", rec.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves a record through the username index.
func (r *Repository) GetByUsername(ctx context.Context, username string) (identity.Record, error) {
	uuid, err := r.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
				With("username", username).
				Wrap(identity.ErrNotFound)
		}
		return identity.Record{}, oops.Code("RECORD_GET_FAILED").
			With("operation", "get username index").
			With("username", username).
			Wrap(err)
	}
	return r.GetByUUID(ctx, uuid)
}

// GetByUUID retrieves a record by player UUID.
func (r *Repository) GetByUUID(ctx context.Context, uuid string) (identity.Record, error) {
	data, err := r.client.Get(ctx, recordKey(uuid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
				With("uuid", uuid).
				Wrap(identity.ErrNotFound)
		}
		return identity.Record{}, oops.Code("RECORD_GET_FAILED").
			With("operation", "get record").
			With("uuid", uuid).
			Wrap(err)
	}

	var rec identity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return identity.Record{}, oops.Code("RECORD_GET_FAILED").
			With("operation", "unmarshal record").
			With("uuid", uuid).
			Wrap(err)
	}
	return rec, nil
}

// UpdatePassword replaces only the password hash for a player.
func (r *Repository) UpdatePassword(ctx context.Context, uuid, passwordHash string) error {
	rec, err := r.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	rec.PasswordHash = passwordHash

	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("RECORD_UPDATE_FAILED").
			With("operation", "marshal record").
			With("uuid", uuid).
			Wrap(err)
	}
	if err := r.client.Set(ctx, recordKey(uuid), data, 0).Err(); err != nil {
		return oops.Code("RECORD_UPDATE_FAILED").
			With("operation", "store record").
			With("uuid", uuid).
			Wrap(err)
	}
	return nil
}

// Delete removes a record and its username index entry.
func (r *Repository) Delete(ctx context.Context, uuid string) error {
	rec, err := r.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, recordKey(uuid), usernameIndexKey(rec.Username)).Err(); err != nil {
		return oops.Code("RECORD_DELETE_FAILED").
			With("uuid", uuid).
			Wrap(err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Repository) Close() error {
	if err := r.client.Close(); err != nil {
		return oops.Code("STORE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
