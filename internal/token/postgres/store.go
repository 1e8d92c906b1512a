// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package postgres stores token records in the tokens table.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/store"
	"github.com/bestwishes/bestwishes/internal/token"
)

// Store implements token.Store using PostgreSQL.
type Store struct {
	pool store.Pool
}

// NewStore creates a new Store.
func NewStore(pool store.Pool) *Store {
	return &Store{pool: pool}
}

// Put upserts the record into its (owner, purpose) slot. ttl is ignored;
// staleness is decided from issued_at.
func (s *Store) Put(ctx context.Context, rec token.Record, _ time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (owner, purpose, token_hash, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, purpose) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			issued_at = EXCLUDED.issued_at
	`, rec.Owner, string(rec.Purpose), rec.TokenHash, rec.IssuedAt)
	if err != nil {
		return oops.With("operation", "put token").
			With("owner", rec.Owner).
			With("purpose", rec.Purpose).
			Wrap(err)
	}
	return nil
}

// Get returns the record in the slot.
func (s *Store) Get(ctx context.Context, owner string, purpose token.Purpose) (*token.Record, error) {
	rec := &token.Record{Owner: owner, Purpose: purpose}
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, issued_at
		FROM tokens
		WHERE owner = $1 AND purpose = $2
	`, owner, string(purpose)).Scan(&rec.TokenHash, &rec.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("owner", owner).With("purpose", purpose).Wrap(token.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return rec, nil
}

// DeleteMatching deletes the record in one statement, so concurrent
// consumers of the same hash race on the row lock and only one sees a row.
func (s *Store) DeleteMatching(ctx context.Context, owner string, purpose token.Purpose, tokenHash string, notBefore time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tokens
		WHERE owner = $1 AND purpose = $2 AND token_hash = $3 AND issued_at > $4
	`, owner, string(purpose), tokenHash, notBefore)
	if err != nil {
		return false, oops.With("operation", "consume token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete empties the slot.
func (s *Store) Delete(ctx context.Context, owner string, purpose token.Purpose) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE owner = $1 AND purpose = $2`, owner, string(purpose))
	if err != nil {
		return oops.With("operation", "delete token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return nil
}

// DeleteIssuedBefore removes every record of purpose issued at or before cutoff.
func (s *Store) DeleteIssuedBefore(ctx context.Context, purpose token.Purpose, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE purpose = $1 AND issued_at <= $2`, string(purpose), cutoff)
	if err != nil {
		return 0, oops.With("operation", "sweep tokens").
			With("purpose", purpose).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ token.Store = (*Store)(nil)
