// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package token issues and verifies the bearer tokens handed out at login.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/horaires-messes/parishauth/internal/identity"
	"github.com/horaires-messes/parishauth/internal/ids"
)

// MinSigningKeyLength is the shortest HMAC key accepted, in bytes
const MinSigningKeyLength = 32

// DefaultTTL is used when Config.TTL is zero
const DefaultTTL = 24 * time.Hour

var (
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrSigningKeyTooShort = errors.New("signing key must be at least 32 bytes")
)

// Config holds token signing configuration
type Config struct {
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
}

// Claims are the JWT claims carried by an access token
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the verified identity behind a token
type Principal struct {
	IdentityID int64
	Role       identity.Role
	ExpiresAt  time.Time
	ID         string
}

// Issuer signs and verifies HS256 access tokens. It is safe for concurrent use.
type Issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer validates cfg and builds an Issuer
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	i := &Issuer{
		key:    key,
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the given identity and returns it with its expiry
func (i *Issuer) Issue(identityID int64, role identity.Role) (string, time.Time, error) {
	if identityID <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: identity id must be positive", ErrTokenInvalid)
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, role)
	}

	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identityID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ids.NewAt(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, issuer and expiry of a token and returns its principal.
// Expired tokens yield ErrTokenExpired, every other failure ErrTokenInvalid.
func (i *Issuer) Verify(raw string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}
	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return &Principal{
		IdentityID: id,
		Role:       role,
		ExpiresAt:  claims.ExpiresAt.Time,
		ID:         claims.ID,
	}, nil
}
