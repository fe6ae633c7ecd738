// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import (
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry is the process-wide set of live Players, indexed by username and
// UUID. It is owned by the composition root and injected into the transport
// layer; nothing reads it from ambient scope. Username keys are folded to
// lower case so lookups match the record stores, which treat usernames as
// unique case-insensitively.
type Registry struct {
	mu         sync.RWMutex
	byUsername map[string]*Player
	byUUID     map[string]*Player
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byUsername: make(map[string]*Player),
		byUUID:     make(map[string]*Player),
	}
}

// Add registers a player. Fails if the username or UUID is already present.
func (r *Registry) Add(p *Player) error {
	key := strings.ToLower(p.Username())
	uuid := p.UUID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[key]; exists {
		return oops.Code("REGISTRY_DUPLICATE").
			With("username", p.Username()).
			Wrap(ErrUsernameTaken)
	}
	if _, exists := r.byUUID[uuid]; exists {
		return oops.Code("REGISTRY_DUPLICATE").
			With("uuid", uuid).
			Errorf("player uuid already registered")
	}

	r.byUsername[key] = p
	r.byUUID[uuid] = p
	return nil
}

// GetByUsername returns the live player with the given username. The match is
// case-insensitive.
func (r *Registry) GetByUsername(username string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUsername[strings.ToLower(username)]
	return p, ok
}

// GetByUUID returns the live player with the given UUID.
func (r *Registry) GetByUUID(uuid string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUUID[uuid]
	return p, ok
}

// Remove drops a player from the registry. The player itself is untouched.
func (r *Registry) Remove(username string) {
	key := strings.ToLower(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byUsername[key]
	if !ok {
		return
	}
	delete(r.byUsername, key)
	delete(r.byUUID, p.UUID())
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUsername)
}

// OnlineCount returns the number of registered players currently online.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.byUsername {
		if p.Online() {
			count++
		}
	}
	return count
}

// SessionCount returns the total number of live sessions across all players.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.byUsername {
		count += p.SessionCount()
	}
	return count
}

// ForceLogoutAll force-logs-out every registered player and returns how many
// were online. Used by the administrative shutdown sequence.
func (r *Registry) ForceLogoutAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.byUsername {
		if p.Online() {
			count++
		}
		p.LogoutForce()
	}
	return count
}
