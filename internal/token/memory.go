// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package token

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

type slot struct {
	owner   string
	purpose Purpose
}

// MemoryStore is a process-local Store. It is used for development and tests;
// records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[slot]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[slot]Record)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, rec Record, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[slot{rec.Owner, rec.Purpose}] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, owner string, purpose Purpose) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[slot{owner, purpose}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// DeleteMatching implements Store.
func (s *MemoryStore) DeleteMatching(_ context.Context, owner string, purpose Purpose, tokenHash string, notBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slot{owner, purpose}
	rec, ok := s.records[key]
	if !ok || !rec.IssuedAt.After(notBefore) {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(tokenHash)) != 1 {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, owner string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, slot{owner, purpose})
	return nil
}

// DeleteIssuedBefore implements Store.
func (s *MemoryStore) DeleteIssuedBefore(_ context.Context, purpose Purpose, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, rec := range s.records {
		if key.purpose == purpose && !rec.IssuedAt.After(cutoff) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
