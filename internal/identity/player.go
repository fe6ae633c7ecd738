// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import (
	"crypto/subtle"
	"regexp"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateUsername validates a username against rules.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// session is one live login: the random per-login identifier and the signed
// token that was handed to the client.
type session struct {
	id    string
	token string
}

// Player is the aggregate root for one account: identity, credential, live
// sessions, the online flag, and the session-scoped object collection.
//
// A single mutex covers sessions, online, and objects so that every gated
// operation performs its token check and its mutation atomically. Transport
// handlers for different connections may therefore call into the same Player
// concurrently.
type Player struct {
	mu sync.Mutex

	username     string
	uuid         string
	passwordHash string
	moderator    bool

	online   bool
	sessions []session
	objects  []GameObject

	hasher PasswordHasher
	signer *TokenSigner
}

// NewPlayer creates a Player with a freshly hashed credential and a generated
// UUID. The plaintext password is not retained.
func NewPlayer(username, password string, moderator bool, hasher PasswordHasher, signer *TokenSigner) (*Player, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if hasher == nil || signer == nil {
		return nil, oops.Code("PLAYER_INVALID_DEPS").Errorf("hasher and signer are required")
	}

	digest, err := hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("PLAYER_CREATE_FAILED").With("username", username).Wrap(err)
	}

	return &Player{
		username:     username,
		uuid:         ulid.Make().String(),
		passwordHash: digest,
		moderator:    moderator,
		hasher:       hasher,
		signer:       signer,
	}, nil
}

// RestorePlayer rehydrates a Player from a persisted Record. Session and
// object state start at their zero values.
func RestorePlayer(rec Record, hasher PasswordHasher, signer *TokenSigner) (*Player, error) {
	if hasher == nil || signer == nil {
		return nil, oops.Code("PLAYER_INVALID_DEPS").Errorf("hasher and signer are required")
	}
	p := &Player{hasher: hasher, signer: signer}
	p.Restore(rec)
	return p, nil
}

// Username returns the player's username.
func (p *Player) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

// UUID returns the player's stable identifier.
func (p *Player) UUID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uuid
}

// IsModerator reports whether the account carries the moderator flag.
func (p *Player) IsModerator() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moderator
}

// Online reports whether at least one session is live.
func (p *Player) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// SessionCount returns the number of live sessions.
func (p *Player) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// VerifyPassword checks the plaintext password against the stored digest.
func (p *Player) VerifyPassword(password string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyPasswordLocked(password)
}

func (p *Player) verifyPasswordLocked(password string) bool {
	ok, err := p.hasher.Verify(password, p.passwordHash)
	return err == nil && ok
}

// Login verifies the credential and, on success, mints a fresh session token,
// records the session, and marks the player online. On failure it returns
// ("", false) with no state change and no hint about what was wrong.
func (p *Player) Login(password string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verifyPasswordLocked(password) {
		return "", false
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return "", false
	}
	token, err := p.signer.Mint(p.username, p.passwordHash, sessionID)
	if err != nil {
		return "", false
	}

	p.sessions = append(p.sessions, session{id: sessionID, token: token})
	p.online = true
	return token, true
}

// VerifyToken reports whether the token belongs to a live session. It fails
// closed: the token must be recorded in the session list, its signature must
// verify, and its claims must exactly match the current username, the current
// password hash, and the session identifier recorded for that token.
func (p *Player) VerifyToken(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyTokenLocked(token)
}

func (p *Player) verifyTokenLocked(token string) bool {
	if token == "" {
		return false
	}

	idx := p.sessionIndexLocked(token)
	if idx < 0 {
		return false
	}

	claims, err := p.signer.Decode(token)
	if err != nil {
		return false
	}

	if claims.Username != p.username {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(claims.PasswordHash), []byte(p.passwordHash)) != 1 {
		return false
	}
	return claims.SessionID == p.sessions[idx].id
}

func (p *Player) sessionIndexLocked(token string) int {
	for i, s := range p.sessions {
		if s.token == token {
			return i
		}
	}
	return -1
}

// Logout revokes the session behind the token. When the last session is
// revoked the player goes offline and the object collection is cleared;
// object state is session-scoped and must be persisted (if at all) by the
// caller before logout. Other sessions are unaffected.
func (p *Player) Logout(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verifyTokenLocked(token) {
		return false
	}

	idx := p.sessionIndexLocked(token)
	p.sessions = append(p.sessions[:idx], p.sessions[idx+1:]...)

	if len(p.sessions) == 0 {
		p.online = false
		p.objects = nil
	}
	return true
}

// LogoutForce unconditionally revokes every session, marks the player
// offline, and clears the object collection. Used by administrative and
// shutdown paths. It always succeeds.
func (p *Player) LogoutForce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions = nil
	p.online = false
	p.objects = nil
}

// ChangePassword replaces the credential. Proof of identity is either a
// currently valid session token or the current plaintext password; if
// neither is supplied or valid, nothing changes and false is returned.
// Existing session entries are left in place, but because tokens pin the
// password hash they were minted against, tokens from before the change no
// longer pass VerifyToken.
func (p *Player) ChangePassword(token, oldPassword, newPassword string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	proven := token != "" && p.verifyTokenLocked(token)
	if !proven {
		proven = oldPassword != "" && p.verifyPasswordLocked(oldPassword)
	}
	if !proven {
		return false
	}

	digest, err := p.hasher.Hash(newPassword)
	if err != nil {
		return false
	}
	p.passwordHash = digest
	return true
}

// AddObject appends the object to the collection. Token-gated; requires the
// player to be online and the object to carry an identity. UUID uniqueness
// is the caller's responsibility.
func (p *Player) AddObject(token string, obj GameObject) bool {
	if obj.Validate() != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online || !p.verifyTokenLocked(token) {
		return false
	}
	p.objects = append(p.objects, obj)
	return true
}

// RemoveObject removes at most one object. If uuid is non-empty the first
// object with that UUID is removed; otherwise the first object with the
// given name is. Returns false when nothing matches.
func (p *Player) RemoveObject(token, name, uuid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online || !p.verifyTokenLocked(token) {
		return false
	}

	idx := -1
	for i, o := range p.objects {
		if uuid != "" {
			if o.UUID == uuid {
				idx = i
				break
			}
			continue
		}
		if o.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	p.objects = append(p.objects[:idx], p.objects[idx+1:]...)
	return true
}

// ReplaceObjects overwrites the whole collection with the given snapshot.
// No diffing or merging; used for periodic state sync from the transport.
// If any object in the snapshot is invalid, nothing is applied.
func (p *Player) ReplaceObjects(token string, objs []GameObject) bool {
	for _, o := range objs {
		if o.Validate() != nil {
			return false
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online || !p.verifyTokenLocked(token) {
		return false
	}

	replacement := make([]GameObject, len(objs))
	copy(replacement, objs)
	p.objects = replacement
	return true
}

// ObjectByName returns the first object with the given prototype name.
// Returns ErrOffline when the player is offline, ErrNotFound when no object
// matches.
func (p *Player) ObjectByName(name string) (GameObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online {
		return GameObject{}, oops.Code("PLAYER_OFFLINE").With("username", p.username).Wrap(ErrOffline)
	}
	for _, o := range p.objects {
		if o.Name == name {
			return o, nil
		}
	}
	return GameObject{}, oops.Code("OBJECT_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
}

// ObjectByUUID returns the object with the given instance UUID.
func (p *Player) ObjectByUUID(uuid string) (GameObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online {
		return GameObject{}, oops.Code("PLAYER_OFFLINE").With("username", p.username).Wrap(ErrOffline)
	}
	for _, o := range p.objects {
		if o.UUID == uuid {
			return o, nil
		}
	}
	return GameObject{}, oops.Code("OBJECT_NOT_FOUND").With("uuid", uuid).Wrap(ErrNotFound)
}

// ObjectIndex returns the position of the object with the given UUID, or -1
// with ErrNotFound.
func (p *Player) ObjectIndex(uuid string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online {
		return -1, oops.Code("PLAYER_OFFLINE").With("username", p.username).Wrap(ErrOffline)
	}
	for i, o := range p.objects {
		if o.UUID == uuid {
			return i, nil
		}
	}
	return -1, oops.Code("OBJECT_NOT_FOUND").With("uuid", uuid).Wrap(ErrNotFound)
}

// Objects returns a copy of the object collection. Requires the player to be
// online; a logged-out player's cached object state is stale by definition.
func (p *Player) Objects() ([]GameObject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.online {
		return nil, oops.Code("PLAYER_OFFLINE").With("username", p.username).Wrap(ErrOffline)
	}
	out := make([]GameObject, len(p.objects))
	copy(out, p.objects)
	return out, nil
}

// Record is the durable slice of a Player: identity and credential only.
// Sessions and objects are deliberately excluded; they do not survive a
// restart.
type Record struct {
	Username     string `json:"username"`
	UUID         string `json:"uuid"`
	PasswordHash string `json:"password_hash"`
	Moderator    bool   `json:"moderator"`
}

// Snapshot returns the durable fields for persistence.
func (p *Player) Snapshot() Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Record{
		Username:     p.username,
		UUID:         p.uuid,
		PasswordHash: p.passwordHash,
		Moderator:    p.moderator,
	}
}

// Restore overwrites the durable fields from a Record. Session and object
// state are left untouched.
func (p *Player) Restore(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.username = rec.Username
	p.uuid = rec.UUID
	p.passwordHash = rec.PasswordHash
	p.moderator = rec.Moderator
}
