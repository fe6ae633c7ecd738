// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import "context"

// RecordRepository manages persistence of durable player records. Only the
// fields in Record are stored; live session and object state never reach the
// repository.
type RecordRepository interface {
	// Create stores a new record. Returns ErrUsernameTaken (wrapped) if the
	// username is already in use.
	Create(ctx context.Context, rec Record) error

	// GetByUsername retrieves a record by username (case-insensitive).
	// Returns ErrNotFound (wrapped) if no record exists.
	GetByUsername(ctx context.Context, username string) (Record, error)

	// GetByUUID retrieves a record by player UUID.
	GetByUUID(ctx context.Context, uuid string) (Record, error)

	// UpdatePassword replaces only the password hash for a player.
	UpdatePassword(ctx context.Context, uuid, passwordHash string) error

	// Delete removes a record.
	Delete(ctx context.Context, uuid string) error

	// Close releases any underlying resources.
	Close() error
}
