// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

// Package store provides RecordRepository implementations.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/emberfall/emberfall/internal/identity"
)

// MemoryRepository is an in-memory identity.RecordRepository. It backs tests
// and single-node deployments that do not need records to survive a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	byUUID map[string]identity.Record
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byUUID: make(map[string]identity.Record),
	}
}

var _ identity.RecordRepository = (*MemoryRepository)(nil)

// Create stores a new record.
func (r *MemoryRepository) Create(_ context.Context, rec identity.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byUUID {
		if strings.EqualFold(existing.Username, rec.Username) {
			return oops.Code("RECORD_CREATE_FAILED").
				With("username", rec.Username).
				Wrap(identity.ErrUsernameTaken)
		}
	}
	r.byUUID[rec.UUID] = rec
	return nil
}

// GetByUsername retrieves a record by username (case-insensitive).
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (identity.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.byUUID {
		if strings.EqualFold(rec.Username, username) {
			return rec, nil
		}
	}
	return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
		With("username", username).
		Wrap(identity.ErrNotFound)
}

// GetByUUID retrieves a record by player UUID.
func (r *MemoryRepository) GetByUUID(_ context.Context, uuid string) (identity.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byUUID[uuid]
	if !ok {
		return identity.Record{}, oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	return rec, nil
}

// UpdatePassword replaces only the password hash for a player.
func (r *MemoryRepository) UpdatePassword(_ context.Context, uuid, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byUUID[uuid]
	if !ok {
		return oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	rec.PasswordHash = passwordHash
	r.byUUID[uuid] = rec
	return nil
}

// Delete removes a record.
func (r *MemoryRepository) Delete(_ context.Context, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUUID[uuid]; !ok {
		return oops.Code("RECORD_NOT_FOUND").
			With("uuid", uuid).
			Wrap(identity.ErrNotFound)
	}
	delete(r.byUUID, uuid)
	return nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close() error {
	return nil
}
