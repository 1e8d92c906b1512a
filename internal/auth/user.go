// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a marketplace account.
type User struct {
	ID           ulid.ULID
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	Verified     bool
	IsSeller     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the projection of a User that may leave the service.
// It never carries credential material.
type PublicUser struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Verified bool   `json:"verified"`
	IsSeller bool   `json:"isSeller"`
}

// NewUser creates an unverified buyer account with a fresh ID.
func NewUser(fullName, email, phone, passwordHash string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code(CodeValidation).Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeValidation).Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		FullName:     strings.TrimSpace(fullName),
		Email:        NormalizeEmail(email),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// State returns the user's position in the account state machine.
func (u *User) State() AccountState {
	return AccountState{Verified: u.Verified, Seller: u.IsSeller}
}

// Public returns the externally visible projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.String(),
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Verified: u.Verified,
		IsSeller: u.IsSeller,
	}
}

// UserRepository manages user persistence.
//
// The Set* mutations write a single column and do not re-check state; the
// caller has already done so.
type UserRepository interface {
	// Create stores a new user. Returns ErrConflict if the email is taken
	// (case-insensitive).
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetVerified marks the user's email as verified.
	SetVerified(ctx context.Context, id ulid.ULID) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetSeller marks the user as a seller.
	SetSeller(ctx context.Context, id ulid.ULID) error
}
