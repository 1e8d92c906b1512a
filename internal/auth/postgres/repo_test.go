// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/auth/postgres"
)

var userCols = []string{"id", "full_name", "email", "phone", "password_hash", "verified", "is_seller", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

// anyArgs matches n positional arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleUser() *auth.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &auth.User{
		ID:           ulid.Make(),
		FullName:     "Jane Doe",
		Email:        "jane@x.com",
		Phone:        "555-0100",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_Create(t *testing.T) {
	u := sampleUser()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "inserts user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID.String(), u.FullName, u.Email, u.Phone, u.PasswordHash, false, false, u.CreatedAt, u.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email is a conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID.String(), u.FullName, u.Email, u.Phone, u.PasswordHash, false, false, u.CreatedAt, u.UpdatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: auth.ErrConflict,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID.String(), u.FullName, u.Email, u.Phone, u.PasswordHash, false, false, u.CreatedAt, u.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			err := postgres.NewUserRepository(mock).Create(context.Background(), u)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.NotErrorIs(t, err, auth.ErrConflict)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	u := sampleUser()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs(u.ID.String()).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(u.ID.String(), u.FullName, u.Email, u.Phone, u.PasswordHash, true, false, u.CreatedAt, u.UpdatedAt))

		got, err := postgres.NewUserRepository(mock).GetByID(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, u.Email, got.Email)
		assert.True(t, got.Verified)
		assert.False(t, got.IsSeller)
	})

	t.Run("absent", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs(u.ID.String()).
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := postgres.NewUserRepository(mock).GetByID(context.Background(), u.ID)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs(u.ID.String()).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("not-a-ulid", u.FullName, u.Email, u.Phone, u.PasswordHash, true, false, u.CreatedAt, u.UpdatedAt))

		_, err := postgres.NewUserRepository(mock).GetByID(context.Background(), u.ID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	u := sampleUser()
	mock := newMock(t)
	mock.ExpectQuery(`WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("Jane@X.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(u.ID.String(), u.FullName, u.Email, u.Phone, u.PasswordHash, false, false, u.CreatedAt, u.UpdatedAt))

	got, err := postgres.NewUserRepository(mock).GetByEmail(context.Background(), "Jane@X.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserRepository_Mutations(t *testing.T) {
	id := ulid.Make()

	tests := []struct {
		name    string
		sql     string
		args    []any
		rows    int64
		run     func(r *postgres.UserRepository) error
		wantErr error
	}{
		{
			name: "set verified",
			sql:  `UPDATE users SET verified = TRUE`,
			args: []any{id.String(), pgxmock.AnyArg()},
			rows: 1,
			run:  func(r *postgres.UserRepository) error { return r.SetVerified(context.Background(), id) },
		},
		{
			name: "update password",
			sql:  `UPDATE users SET password_hash = \$3`,
			args: []any{id.String(), pgxmock.AnyArg(), "newhash"},
			rows: 1,
			run:  func(r *postgres.UserRepository) error { return r.UpdatePassword(context.Background(), id, "newhash") },
		},
		{
			name:    "set seller on missing user",
			sql:     `UPDATE users SET is_seller = TRUE`,
			args:    []any{id.String(), pgxmock.AnyArg()},
			rows:    0,
			run:     func(r *postgres.UserRepository) error { return r.SetSeller(context.Background(), id) },
			wantErr: auth.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectExec(tt.sql).WithArgs(tt.args...).WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			err := tt.run(postgres.NewUserRepository(mock))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSellerRepository(t *testing.T) {
	owner := ulid.Make()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seller := &auth.SellerAccount{
		ID:           ulid.Make(),
		OwnerID:      owner,
		SellerName:   "Jane",
		StoreName:    "Jane's",
		StoreAddress: "1 Main St",
		StorePhone:   "555",
		Country:      "NG",
		City:         "Lagos",
		Assets:       []auth.Asset{{Field: "businessIMAGE", URL: "https://cdn.test/a.png"}},
		CreatedAt:    created,
	}

	t.Run("create conflict on second onboarding", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO seller_accounts`).
			WithArgs(anyArgs(11)...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := postgres.NewSellerRepository(mock).Create(context.Background(), seller)
		require.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("create stores assets as json", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO seller_accounts`).
			WithArgs(seller.ID.String(), owner.String(), "Jane", "Jane's", "1 Main St", "555", "NG", "", "Lagos",
				[]byte(`[{"field":"businessIMAGE","URL":"https://cdn.test/a.png"}]`), created).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewSellerRepository(mock).Create(context.Background(), seller))
	})

	t.Run("get by owner", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM seller_accounts`).
			WithArgs(owner.String()).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "owner", "seller_name", "store_name", "store_address", "store_phone",
				"country", "dob", "city", "assets", "created_at",
			}).AddRow(seller.ID.String(), owner.String(), "Jane", "Jane's", "1 Main St", "555", "NG", "", "Lagos",
				[]byte(`[{"field":"businessIMAGE","URL":"https://cdn.test/a.png"}]`), created))

		got, err := postgres.NewSellerRepository(mock).GetByOwner(context.Background(), owner)
		require.NoError(t, err)
		assert.Equal(t, seller, got)
	})

	t.Run("get by owner absent", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM seller_accounts`).
			WithArgs(owner.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		_, err := postgres.NewSellerRepository(mock).GetByOwner(context.Background(), owner)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestProductRepository_Create(t *testing.T) {
	p := &auth.Product{
		ID:        ulid.Make(),
		OwnerID:   ulid.Make(),
		Name:      "Vase",
		Price:     "25.00",
		Category:  "home",
		Assets:    []auth.Asset{{Field: "proFrontIMAGE", URL: "https://cdn.test/f.png"}},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("inserts product", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO products`).
			WithArgs(p.ID.String(), p.OwnerID.String(), "Vase", "25.00", "", "", "", "home", "", "",
				[]byte(`[{"field":"proFrontIMAGE","URL":"https://cdn.test/f.png"}]`), p.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, postgres.NewProductRepository(mock).Create(context.Background(), p))
	})

	t.Run("missing owner", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO products`).
			WithArgs(anyArgs(12)...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
		err := postgres.NewProductRepository(mock).Create(context.Background(), p)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}
