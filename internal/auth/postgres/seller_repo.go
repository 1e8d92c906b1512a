// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/store"
)

// SellerRepository implements auth.SellerRepository using PostgreSQL.
type SellerRepository struct {
	pool store.Pool
}

// NewSellerRepository creates a new SellerRepository.
func NewSellerRepository(pool store.Pool) *SellerRepository {
	return &SellerRepository{pool: pool}
}

// Create stores a seller account. The unique owner column turns a second
// onboarding of the same user into auth.ErrConflict.
func (r *SellerRepository) Create(ctx context.Context, seller *auth.SellerAccount) error {
	assets, err := json.Marshal(seller.Assets)
	if err != nil {
		return oops.With("operation", "marshal seller assets").Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO seller_accounts (
			id, owner, seller_name, store_name, store_address, store_phone,
			country, dob, city, assets, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		seller.ID.String(),
		seller.OwnerID.String(),
		seller.SellerName,
		seller.StoreName,
		seller.StoreAddress,
		seller.StorePhone,
		seller.Country,
		seller.DOB,
		seller.City,
		assets,
		seller.CreatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("owner", seller.OwnerID.String()).Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.With("operation", "insert seller account").
			With("owner", seller.OwnerID.String()).
			Wrap(err)
	}
	return nil
}

// GetByOwner retrieves the seller account of a user.
func (r *SellerRepository) GetByOwner(ctx context.Context, owner ulid.ULID) (*auth.SellerAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner, seller_name, store_name, store_address, store_phone,
		       country, dob, city, assets, created_at
		FROM seller_accounts
		WHERE owner = $1
	`, owner.String())

	var (
		s            auth.SellerAccount
		id, ownerStr string
		assets       []byte
	)
	err := row.Scan(
		&id, &ownerStr,
		&s.SellerName, &s.StoreName, &s.StoreAddress, &s.StorePhone,
		&s.Country, &s.DOB, &s.City,
		&assets, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("owner", owner.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get seller account").
			With("owner", owner.String()).
			Wrap(err)
	}

	if s.ID, err = ulid.Parse(id); err != nil {
		return nil, oops.With("operation", "parse seller id").With("id", id).Wrap(err)
	}
	if s.OwnerID, err = ulid.Parse(ownerStr); err != nil {
		return nil, oops.With("operation", "parse seller owner").With("owner", ownerStr).Wrap(err)
	}
	if err := json.Unmarshal(assets, &s.Assets); err != nil {
		return nil, oops.With("operation", "unmarshal seller assets").With("id", id).Wrap(err)
	}
	return &s, nil
}

var _ auth.SellerRepository = (*SellerRepository)(nil)
