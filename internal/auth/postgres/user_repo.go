// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/store"
)

const userColumns = `id, full_name, email, phone, password_hash, verified, is_seller, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.FullName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Verified,
		user.IsSeller,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("email", user.Email).Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// SetVerified marks the user's email as verified.
func (r *UserRepository) SetVerified(ctx context.Context, id ulid.ULID) error {
	return r.update(ctx, "set verified", id, `UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1`)
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, "update password", id,
		`UPDATE users SET password_hash = $3, updated_at = $2 WHERE id = $1`, passwordHash)
}

// SetSeller marks the user as a seller.
func (r *UserRepository) SetSeller(ctx context.Context, id ulid.ULID) error {
	return r.update(ctx, "set seller", id, `UPDATE users SET is_seller = TRUE, updated_at = $2 WHERE id = $1`)
}

// update runs a single-row UPDATE whose first two parameters are the id and
// the new updated_at.
func (r *UserRepository) update(ctx context.Context, operation string, id ulid.ULID, sql string, extra ...any) error {
	args := append([]any{id.String(), time.Now().UTC()}, extra...)
	result, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a row into a User. Returns pgx.ErrNoRows unwrapped so
// callers can map it.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user  auth.User
		idStr string
	)
	if err := row.Scan(
		&idStr,
		&user.FullName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.Verified,
		&user.IsSeller,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers match pgx.ErrNoRows
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").With("id", idStr).Wrap(err)
	}
	user.ID = id
	return &user, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
