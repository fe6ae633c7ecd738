// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrOffline is returned when an operation requires the player to be online.
// Callers can use it to distinguish "not logged in" from a rejected token.
var ErrOffline = errors.New("player is offline")

// ErrUsernameTaken is returned when creating a record whose username is
// already in use.
var ErrUsernameTaken = errors.New("username already taken")
