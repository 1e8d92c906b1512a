// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// Ledger events reported to an Observer.
const (
	EventIssued   = "issued"
	EventConsumed = "consumed"
	EventRejected = "rejected"
	EventRevoked  = "revoked"
	EventSwept    = "swept"
)

// Observer receives ledger events, typically for metrics.
type Observer interface {
	TokenEvent(purpose Purpose, event string, n int)
}

// Ledger issues and checks single-use tokens on top of a Store.
type Ledger struct {
	store    Store
	ttl      map[Purpose]time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL overrides the lifetime of tokens issued for purpose.
func WithTTL(purpose Purpose, ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl[purpose] = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for store failures during Validate.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// NewLedger creates a Ledger over store.
func NewLedger(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, oops.Errorf("token store is required")
	}
	l := &Ledger{
		store: store,
		ttl: map[Purpose]time.Duration{
			PurposeVerify: DefaultVerifyTTL,
			PurposeReset:  DefaultResetTTL,
		},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TTL returns the configured lifetime for purpose.
func (l *Ledger) TTL(purpose Purpose) time.Duration {
	return l.ttl[purpose]
}

// Issue generates a secret for (owner, purpose), stores its hash and returns
// the raw secret. Any live token in the slot is superseded.
func (l *Ledger) Issue(ctx context.Context, owner string, purpose Purpose) (string, error) {
	if owner == "" {
		return "", oops.Code("TOKEN_OWNER_EMPTY").Errorf("token owner cannot be empty")
	}
	secret, err := GenerateSecret(purpose)
	if err != nil {
		return "", err
	}

	rec := Record{
		Owner:     owner,
		Purpose:   purpose,
		TokenHash: HashSecret(secret),
		IssuedAt:  l.now().UTC(),
	}
	if err := l.store.Put(ctx, rec, l.ttl[purpose]); err != nil {
		return "", oops.With("operation", "store token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	l.observe(purpose, EventIssued, 1)
	return secret, nil
}

// Validate reports whether secret matches the live token in (owner, purpose).
// It fails closed: any miss, mismatch, expiry or store failure is false.
// The secret is compared verbatim. The token is left in place.
func (l *Ledger) Validate(ctx context.Context, owner string, purpose Purpose, secret string) bool {
	if owner == "" || secret == "" || !purpose.Valid() {
		return false
	}

	rec, err := l.store.Get(ctx, owner, purpose)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, l.logger, "token lookup failed", err)
		}
		return false
	}
	if !rec.IssuedAt.After(l.cutoff(purpose)) {
		return false
	}
	return MatchSecret(secret, rec.TokenHash)
}

// Consume atomically validates and deletes the token. Exactly one of any
// number of concurrent consumers of the same live token observes true.
// The error is reserved for store failures.
func (l *Ledger) Consume(ctx context.Context, owner string, purpose Purpose, secret string) (bool, error) {
	if owner == "" || secret == "" || !purpose.Valid() {
		l.observe(purpose, EventRejected, 1)
		return false, nil
	}

	ok, err := l.store.DeleteMatching(ctx, owner, purpose, HashSecret(secret), l.cutoff(purpose))
	if err != nil {
		return false, oops.With("operation", "consume token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	if ok {
		l.observe(purpose, EventConsumed, 1)
	} else {
		l.observe(purpose, EventRejected, 1)
	}
	return ok, nil
}

// Revoke empties the (owner, purpose) slot. Revoking an empty slot is a no-op.
func (l *Ledger) Revoke(ctx context.Context, owner string, purpose Purpose) error {
	if err := l.store.Delete(ctx, owner, purpose); err != nil {
		return oops.With("operation", "revoke token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	l.observe(purpose, EventRevoked, 1)
	return nil
}

// Sweep deletes tokens of every purpose that are past their TTL.
func (l *Ledger) Sweep(ctx context.Context) (int64, error) {
	var total int64
	for _, purpose := range []Purpose{PurposeVerify, PurposeReset} {
		n, err := l.store.DeleteIssuedBefore(ctx, purpose, l.cutoff(purpose))
		if err != nil {
			return total, oops.With("operation", "sweep tokens").With("purpose", purpose).Wrap(err)
		}
		if n > 0 {
			l.observe(purpose, EventSwept, int(n))
		}
		total += n
	}
	return total, nil
}

// cutoff is the issue time at or before which a purpose's tokens are stale.
func (l *Ledger) cutoff(purpose Purpose) time.Time {
	return l.now().UTC().Add(-l.ttl[purpose])
}

func (l *Ledger) observe(purpose Purpose, event string, n int) {
	if l.observer != nil {
		l.observer.TokenEvent(purpose, event, n)
	}
}
