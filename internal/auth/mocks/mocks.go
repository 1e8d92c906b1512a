// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package mocks provides testify mocks of the auth collaborators.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/notify"
	"github.com/bestwishes/bestwishes/internal/token"
)

// T is the subset of *testing.T the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

func register(t T, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// errAt returns the error at position i of a Called result.
func errAt(ret mock.Arguments, i int) error {
	if fn, ok := ret.Get(i).(func() error); ok {
		return fn()
	}
	return ret.Error(i)
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct{ mock.Mock }

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t T) *MockUserRepository {
	m := &MockUserRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return errAt(m.Called(ctx, user), 0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	ret := m.Called(ctx, id)
	u, _ := ret.Get(0).(*auth.User)
	return u, errAt(ret, 1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	u, _ := ret.Get(0).(*auth.User)
	return u, errAt(ret, 1)
}

func (m *MockUserRepository) SetVerified(ctx context.Context, id ulid.ULID) error {
	return errAt(m.Called(ctx, id), 0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return errAt(m.Called(ctx, id, passwordHash), 0)
}

func (m *MockUserRepository) SetSeller(ctx context.Context, id ulid.ULID) error {
	return errAt(m.Called(ctx, id), 0)
}

// MockSellerRepository mocks auth.SellerRepository.
type MockSellerRepository struct{ mock.Mock }

// NewMockSellerRepository creates a mock that asserts its expectations on cleanup.
func NewMockSellerRepository(t T) *MockSellerRepository {
	m := &MockSellerRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockSellerRepository) Create(ctx context.Context, seller *auth.SellerAccount) error {
	return errAt(m.Called(ctx, seller), 0)
}

func (m *MockSellerRepository) GetByOwner(ctx context.Context, owner ulid.ULID) (*auth.SellerAccount, error) {
	ret := m.Called(ctx, owner)
	s, _ := ret.Get(0).(*auth.SellerAccount)
	return s, errAt(ret, 1)
}

// MockProductRepository mocks auth.ProductRepository.
type MockProductRepository struct{ mock.Mock }

// NewMockProductRepository creates a mock that asserts its expectations on cleanup.
func NewMockProductRepository(t T) *MockProductRepository {
	m := &MockProductRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockProductRepository) Create(ctx context.Context, product *auth.Product) error {
	return errAt(m.Called(ctx, product), 0)
}

// MockTokenLedger mocks auth.TokenLedger.
type MockTokenLedger struct{ mock.Mock }

// NewMockTokenLedger creates a mock that asserts its expectations on cleanup.
func NewMockTokenLedger(t T) *MockTokenLedger {
	m := &MockTokenLedger{}
	register(t, &m.Mock)
	return m
}

func (m *MockTokenLedger) Issue(ctx context.Context, owner string, purpose token.Purpose) (string, error) {
	ret := m.Called(ctx, owner, purpose)
	return ret.String(0), errAt(ret, 1)
}

func (m *MockTokenLedger) Validate(ctx context.Context, owner string, purpose token.Purpose, secret string) bool {
	return m.Called(ctx, owner, purpose, secret).Bool(0)
}

func (m *MockTokenLedger) Consume(ctx context.Context, owner string, purpose token.Purpose, secret string) (bool, error) {
	ret := m.Called(ctx, owner, purpose, secret)
	return ret.Bool(0), errAt(ret, 1)
}

func (m *MockTokenLedger) Revoke(ctx context.Context, owner string, purpose token.Purpose) error {
	return errAt(m.Called(ctx, owner, purpose), 0)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct{ mock.Mock }

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(t, &m.Mock)
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), errAt(ret, 1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := m.Called(password, hash)
	return ret.Bool(0), errAt(ret, 1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockSessionSigner mocks auth.SessionSigner.
type MockSessionSigner struct{ mock.Mock }

// NewMockSessionSigner creates a mock that asserts its expectations on cleanup.
func NewMockSessionSigner(t T) *MockSessionSigner {
	m := &MockSessionSigner{}
	register(t, &m.Mock)
	return m
}

func (m *MockSessionSigner) Sign(userID, email string) (string, error) {
	ret := m.Called(userID, email)
	return ret.String(0), errAt(ret, 1)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct{ mock.Mock }

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t T) *MockNotifier {
	m := &MockNotifier{}
	register(t, &m.Mock)
	return m
}

func (m *MockNotifier) Dispatch(ctx context.Context, msg notify.Message) {
	m.Called(ctx, msg)
}

var (
	_ auth.UserRepository    = (*MockUserRepository)(nil)
	_ auth.SellerRepository  = (*MockSellerRepository)(nil)
	_ auth.ProductRepository = (*MockProductRepository)(nil)
	_ auth.TokenLedger       = (*MockTokenLedger)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.SessionSigner     = (*MockSessionSigner)(nil)
	_ auth.Notifier          = (*MockNotifier)(nil)
)
