// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

// Package identity is the session and identity core of the Emberfall game
// backend.
//
// # Domain Types
//
// Player is the aggregate root: it owns the password credential, the set of
// live session tokens, the online flag, and the per-session GameObject
// collection. All object mutation is gated behind a valid bearer token, and
// all object access is gated behind the online flag. Create Players with
// NewPlayer, or with RestorePlayer when rehydrating a persisted Record.
//
// # Sessions
//
// A player may hold several concurrent sessions, one per transport
// connection. Each Login mints an independent signed token carrying the
// username, the current password hash, and a random session identifier.
// Tokens have no expiry: one lives exactly as long as its session entry, and
// is revoked by Logout or LogoutForce.
//
// # Composition Root
//
// Registry holds the live Player set for the process. Service coordinates the
// Registry with a RecordRepository so the transport layer can resolve players
// by username without touching storage details.
package identity
