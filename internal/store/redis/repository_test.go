// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfall/emberfall/internal/identity"
	"github.com/emberfall/emberfall/internal/store/redis"
	"github.com/emberfall/emberfall/pkg/errutil"
)

func newTestRepository(t *testing.T) (*redis.Repository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	repo := redis.NewWithClient(client)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func aliceRecord() identity.Record {
	return identity.Record{
		Username:     "alice",
		UUID:         "01JG0000000000000000000000",
		PasswordHash: "digest-1",
		Moderator:    true,
	}
}

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		require.NoError(t, repo.Create(ctx, aliceRecord()))

		got, err := repo.GetByUUID(ctx, "01JG0000000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, aliceRecord(), got)
	})

	t.Run("username uniqueness across case", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		require.NoError(t, repo.Create(ctx, aliceRecord()))

		dup := aliceRecord()
		dup.Username = "ALICE"
		dup.UUID = "01JG0000000000000000000001"

		err := repo.Create(ctx, dup)
		require.ErrorIs(t, err, identity.ErrUsernameTaken)
		errutil.AssertErrorCode(t, err, "RECORD_CREATE_FAILED")
	})

	t.Run("backend failure does not leak the username claim", func(t *testing.T) {
		repo, mr := newTestRepository(t)

		mr.SetError("write refused")
		err := repo.Create(ctx, aliceRecord())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RECORD_CREATE_FAILED")
		mr.SetError("")

		// The username must be claimable once the backend recovers.
		require.NoError(t, repo.Create(ctx, aliceRecord()))
	})
}

func TestRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	require.NoError(t, repo.Create(ctx, aliceRecord()))

	t.Run("case-insensitive lookup", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		require.ErrorIs(t, err, identity.ErrNotFound)
		errutil.AssertErrorCode(t, err, "RECORD_NOT_FOUND")
	})
}

func TestRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces only the hash", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		require.NoError(t, repo.Create(ctx, aliceRecord()))

		require.NoError(t, repo.UpdatePassword(ctx, "01JG0000000000000000000000", "digest-2"))

		got, err := repo.GetByUUID(ctx, "01JG0000000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "digest-2", got.PasswordHash)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, got.Moderator)
	})

	t.Run("unknown uuid", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		err := repo.UpdatePassword(ctx, "missing", "digest-2")
		require.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	require.NoError(t, repo.Create(ctx, aliceRecord()))

	require.NoError(t, repo.Delete(ctx, "01JG0000000000000000000000"))

	_, err := repo.GetByUUID(ctx, "01JG0000000000000000000000")
	require.ErrorIs(t, err, identity.ErrNotFound)

	// The username index entry is gone too.
	rec := aliceRecord()
	rec.UUID = "01JG0000000000000000000002"
	require.NoError(t, repo.Create(ctx, rec))
}

func TestNew_InvalidURL(t *testing.T) {
	cfg := redis.DefaultConfig()
	cfg.URL = "not-a-url"

	_, err := redis.New(cfg)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
}
