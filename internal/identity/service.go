// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// MetricsRecorder receives identity events for instrumentation. All methods
// must be safe for concurrent use.
type MetricsRecorder interface {
	RecordLogin(success bool)
	RecordLogout(success bool)
	RecordTokenCheck(valid bool)
	RecordForcedLogoutRun()
}

type nopMetrics struct{}

func (nopMetrics) RecordLogin(bool)       {}
func (nopMetrics) RecordLogout(bool)      {}
func (nopMetrics) RecordTokenCheck(bool)  {}
func (nopMetrics) RecordForcedLogoutRun() {}

// Service coordinates the live Registry with the RecordRepository. The
// transport layer calls it to resolve players by username and to run the
// login flow; everything token-gated afterwards goes straight to the Player.
type Service struct {
	registry *Registry
	repo     RecordRepository
	hasher   PasswordHasher
	signer   *TokenSigner
	metrics  MetricsRecorder
}

// NewService creates a Service.
func NewService(registry *Registry, repo RecordRepository, hasher PasswordHasher, signer *TokenSigner) (*Service, error) {
	if registry == nil || repo == nil || hasher == nil || signer == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("registry, repository, hasher, and signer are required")
	}
	return &Service{
		registry: registry,
		repo:     repo,
		hasher:   hasher,
		signer:   signer,
		metrics:  nopMetrics{},
	}, nil
}

// SetMetrics installs the metrics recorder. Call once at the composition
// root, before the service takes traffic. A nil recorder disables recording.
func (s *Service) SetMetrics(m MetricsRecorder) {
	if m == nil {
		s.metrics = nopMetrics{}
		return
	}
	s.metrics = m
}

// Registry returns the live player registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Provision creates a new player account, persists its record, and registers
// it. This is the administrative creation path; it does not log the player in.
func (s *Service) Provision(ctx context.Context, username, password string, moderator bool) (*Player, error) {
	player, err := NewPlayer(username, password, moderator, s.hasher, s.signer)
	if err != nil {
		return nil, oops.Code("PROVISION_FAILED").With("username", username).Wrap(err)
	}

	if err := s.repo.Create(ctx, player.Snapshot()); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, oops.Code("PROVISION_USERNAME_TAKEN").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("PROVISION_FAILED").
			With("operation", "persist record").
			With("username", username).
			Wrap(err)
	}

	if err := s.registry.Add(player); err != nil {
		return nil, oops.Code("PROVISION_FAILED").
			With("operation", "register player").
			With("username", username).
			Wrap(err)
	}

	return player, nil
}

// Resolve returns the live player for a username, rehydrating it from the
// repository if it is not yet registered. Returns ErrNotFound (wrapped) for
// unknown usernames.
func (s *Service) Resolve(ctx context.Context, username string) (*Player, error) {
	if p, ok := s.registry.GetByUsername(username); ok {
		return p, nil
	}

	rec, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("PLAYER_NOT_FOUND").With("username", username).Wrap(err)
		}
		return nil, oops.Code("PLAYER_RESOLVE_FAILED").
			With("operation", "get record by username").
			With("username", username).
			Wrap(err)
	}

	player, err := RestorePlayer(rec, s.hasher, s.signer)
	if err != nil {
		return nil, oops.Code("PLAYER_RESOLVE_FAILED").With("username", username).Wrap(err)
	}

	if err := s.registry.Add(player); err != nil {
		// Lost a race with a concurrent Resolve; use the winner.
		if p, ok := s.registry.GetByUsername(username); ok {
			return p, nil
		}
		return nil, oops.Code("PLAYER_RESOLVE_FAILED").With("username", username).Wrap(err)
	}

	return player, nil
}

// Login resolves the player and runs the credential check. On failure the
// caller learns only that the credentials were invalid, never which part was
// wrong.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	player, err := s.Resolve(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a hash anyway so unknown usernames cost the same as bad
			// passwords.
			_, _ = s.hasher.Hash(password)
			s.metrics.RecordLogin(false)
			return "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		return "", err
	}

	token, ok := player.Login(password)
	if !ok {
		s.metrics.RecordLogin(false)
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}
	s.metrics.RecordLogin(true)
	return token, nil
}

// Logout revokes one session of the named player.
func (s *Service) Logout(ctx context.Context, username, token string) error {
	player, err := s.Resolve(ctx, username)
	if err != nil {
		return err
	}
	// Player.Logout verifies the token before removing the session, so the
	// outcome doubles as a token-check observation.
	ok := player.Logout(token)
	s.metrics.RecordTokenCheck(ok)
	s.metrics.RecordLogout(ok)
	if !ok {
		return oops.Code("SESSION_INVALID").With("username", username).Errorf("invalid session token")
	}
	return nil
}

// ChangePassword updates the credential and persists the new hash. Proof of
// identity follows Player.ChangePassword: a valid token or the current
// password.
func (s *Service) ChangePassword(ctx context.Context, username, token, oldPassword, newPassword string) error {
	player, err := s.Resolve(ctx, username)
	if err != nil {
		return err
	}

	if !player.ChangePassword(token, oldPassword, newPassword) {
		return oops.Code("AUTH_INVALID_CREDENTIALS").
			With("username", username).
			Errorf("password change rejected")
	}

	rec := player.Snapshot()
	if err := s.repo.UpdatePassword(ctx, rec.UUID, rec.PasswordHash); err != nil {
		return oops.Code("PASSWORD_PERSIST_FAILED").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// ForceLogoutAll force-logs-out every live player. Part of the process
// shutdown sequence.
func (s *Service) ForceLogoutAll() int {
	s.metrics.RecordForcedLogoutRun()
	return s.registry.ForceLogoutAll()
}
