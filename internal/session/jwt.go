// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package session issues and parses the bearer tokens returned by login.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the shortest accepted HMAC secret, in bytes.
const MinSecretLength = 32

// DefaultValidity is how long a session token is accepted.
const DefaultValidity = 24 * time.Hour

// ErrExpired is returned by Parse for a token past its expiry.
var ErrExpired = errors.New("session token expired")

// Claims are the JWT claims of a session token. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Signer issues HS256 session tokens.
type Signer struct {
	secret   []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
}

// NewSigner creates a Signer. A non-positive validity uses DefaultValidity.
func NewSigner(secret string, validity time.Duration, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("SESSION_SECRET_INVALID").
			With("min_length", MinSecretLength).
			Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Signer{secret: []byte(secret), validity: validity, issuer: issuer, now: time.Now}, nil
}

// Sign returns a signed token for the user.
func (s *Signer) Sign(userID, email string) (string, error) {
	if userID == "" {
		return "", oops.Code("SESSION_SUBJECT_EMPTY").Errorf("session subject cannot be empty")
	}
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
		Email: email,
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims. Only HS256 tokens from the
// configured issuer are accepted.
func (s *Signer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, oops.Code("SESSION_EXPIRED").Wrap(ErrExpired)
	}
	if err != nil {
		return nil, oops.Code("SESSION_INVALID").Wrap(err)
	}
	return claims, nil
}

// Validity returns the configured token lifetime.
func (s *Signer) Validity() time.Duration {
	return s.validity
}
