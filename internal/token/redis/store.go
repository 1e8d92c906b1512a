// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package redis stores token records as Redis hashes with native expiry.
//
// Each slot is one key, <prefix>:<purpose>:<owner>, holding the digest and
// the issue time in Unix microseconds. Conditional deletes run as Lua scripts
// so the compare and the delete happen in one server step.
package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/token"
)

// DefaultKeyPrefix namespaces token keys.
const DefaultKeyPrefix = "bestwishes:token"

const (
	fieldHash     = "hash"
	fieldIssuedAt = "issued_at"
	scanBatch     = 200
)

// consumeScript deletes KEYS[1] when its hash equals ARGV[1] and it was
// issued strictly after ARGV[2].
var consumeScript = goredis.NewScript(`
local h = redis.call('HGET', KEYS[1], 'hash')
if not h or h ~= ARGV[1] then
	return 0
end
local at = tonumber(redis.call('HGET', KEYS[1], 'issued_at'))
if not at or at <= tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// sweepScript deletes KEYS[1] when it was issued at or before ARGV[1].
var sweepScript = goredis.NewScript(`
local at = tonumber(redis.call('HGET', KEYS[1], 'issued_at'))
if not at or at > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// Store implements token.Store on Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore creates a Store. An empty prefix uses DefaultKeyPrefix.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: strings.TrimSuffix(prefix, ":")}
}

func (s *Store) key(owner string, purpose token.Purpose) string {
	return s.prefix + ":" + string(purpose) + ":" + owner
}

// Put writes the slot and sets its expiry to ttl when ttl is positive.
func (s *Store) Put(ctx context.Context, rec token.Record, ttl time.Duration) error {
	key := s.key(rec.Owner, rec.Purpose)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldHash, rec.TokenHash, fieldIssuedAt, rec.IssuedAt.UnixMicro())
		if ttl > 0 {
			pipe.PExpire(ctx, key, ttl)
		}
		return nil
	})
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
	fields, err := s.client.HGetAll(ctx, s.key(owner, purpose)).Result()
	if err != nil {
		return nil, oops.With("operation", "get token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	hash, ok := fields[fieldHash]
	if !ok {
		return nil, oops.With("owner", owner).With("purpose", purpose).Wrap(token.ErrNotFound)
	}
	micros, err := strconv.ParseInt(fields[fieldIssuedAt], 10, 64)
	if err != nil {
		return nil, oops.With("operation", "parse issued_at").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return &token.Record{
		Owner:     owner,
		Purpose:   purpose,
		TokenHash: hash,
		IssuedAt:  time.UnixMicro(micros).UTC(),
	}, nil
}

// DeleteMatching implements token.Store.
func (s *Store) DeleteMatching(ctx context.Context, owner string, purpose token.Purpose, tokenHash string, notBefore time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client,
		[]string{s.key(owner, purpose)},
		tokenHash, notBefore.UnixMicro(),
	).Int()
	if err != nil {
		return false, oops.With("operation", "consume token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return n == 1, nil
}

// Delete empties the slot.
func (s *Store) Delete(ctx context.Context, owner string, purpose token.Purpose) error {
	if err := s.client.Del(ctx, s.key(owner, purpose)).Err(); err != nil {
		return oops.With("operation", "delete token").
			With("owner", owner).
			With("purpose", purpose).
			Wrap(err)
	}
	return nil
}

// DeleteIssuedBefore scans the purpose namespace and removes stale slots.
// Keys with a TTL normally expire on their own; this catches keys written
// without one.
func (s *Store) DeleteIssuedBefore(ctx context.Context, purpose token.Purpose, cutoff time.Time) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+":"+string(purpose)+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n, err := sweepScript.Run(ctx, s.client, []string{iter.Val()}, cutoff.UnixMicro()).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return removed, oops.With("operation", "sweep tokens").
				With("purpose", purpose).
				With("key", iter.Val()).
				Wrap(err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, oops.With("operation", "scan tokens").With("purpose", purpose).Wrap(err)
	}
	return removed, nil
}

var _ token.Store = (*Store)(nil)
