// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SessionIDBytes is the length of a session identifier before hex encoding.
const SessionIDBytes = 16

// Claims are the statements carried by a session token. A token proves one
// successful login, so the claims pin the credential state at login time and
// the per-session random identifier. There is no expiry claim: a token lives
// exactly as long as its session entry on the Player.
type Claims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	SessionID    string `json:"session_id"`
}

// TokenSigner mints and decodes HMAC-signed session tokens.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a TokenSigner with the given signing secret.
func NewTokenSigner(secret []byte) (*TokenSigner, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_EMPTY_SECRET").Errorf("token signing secret cannot be empty")
	}
	return &TokenSigner{secret: secret}, nil
}

// Mint signs a token binding the username, the current password hash, and a
// session identifier.
func (s *TokenSigner) Mint(username, passwordHash, sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:     username,
		PasswordHash: passwordHash,
		SessionID:    sessionID,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("username", username).Wrap(err)
	}
	return signed, nil
}

// Decode verifies a token's signature and returns its claims.
func (s *TokenSigner) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token failed verification")
	}
	return claims, nil
}

// NewSessionID generates a cryptographically unpredictable session
// identifier, hex-encoded.
func NewSessionID() (string, error) {
	buf := make([]byte, SessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionIDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
