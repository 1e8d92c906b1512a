// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package token implements the single-use challenge ledger behind email
// verification and password reset.
//
// Only a SHA-256 digest of each secret is ever stored. A slot is identified by
// (owner, purpose) and holds at most one live token; issuing again overwrites
// the slot. Tokens older than the purpose TTL are treated as absent.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// Purpose scopes a token to the flow it was issued for.
type Purpose string

// Known purposes.
const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Secret shape and lifetime defaults.
const (
	OTPDigits        = 6
	ResetSecretBytes = 32 // 64 hex chars

	DefaultVerifyTTL = 15 * time.Minute
	DefaultResetTTL  = time.Hour
)

// ErrNotFound is returned by a Store when a slot is empty.
var ErrNotFound = errors.New("token not found")

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeVerify || p == PurposeReset
}

// Record is the persisted form of a token.
type Record struct {
	Owner     string
	Purpose   Purpose
	TokenHash string
	IssuedAt  time.Time
}

// Store persists token records. Implementations must make DeleteMatching a
// single atomic step: concurrent callers presenting the same hash must see at
// most one true result.
type Store interface {
	// Put inserts or replaces the record in its (owner, purpose) slot.
	// ttl is a hint for stores with native expiry.
	Put(ctx context.Context, rec Record, ttl time.Duration) error

	// Get returns the record in the slot, or ErrNotFound.
	Get(ctx context.Context, owner string, purpose Purpose) (*Record, error)

	// DeleteMatching removes the record only if its hash equals tokenHash and
	// it was issued after notBefore. Reports whether a record was removed.
	DeleteMatching(ctx context.Context, owner string, purpose Purpose, tokenHash string, notBefore time.Time) (bool, error)

	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, owner string, purpose Purpose) error

	// DeleteIssuedBefore removes every record of purpose issued at or before cutoff.
	DeleteIssuedBefore(ctx context.Context, purpose Purpose, cutoff time.Time) (int64, error)
}

// GenerateSecret returns a fresh raw secret for purpose: a zero-padded
// six-digit code for verify, 64 hex characters for reset.
func GenerateSecret(purpose Purpose) (string, error) {
	switch purpose {
	case PurposeVerify:
		limit := big.NewInt(1_000_000)
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", oops.Code("TOKEN_GENERATE_FAILED").With("purpose", purpose).Wrap(err)
		}
		return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
	case PurposeReset:
		buf := make([]byte, ResetSecretBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", oops.Code("TOKEN_GENERATE_FAILED").With("purpose", purpose).Wrap(err)
		}
		return hex.EncodeToString(buf), nil
	default:
		return "", oops.Code("TOKEN_PURPOSE_INVALID").With("purpose", purpose).Errorf("unknown token purpose %q", purpose)
	}
}

// HashSecret computes the stored digest of a raw secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// MatchSecret reports whether secret hashes to hash, in constant time.
func MatchSecret(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	computed := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
