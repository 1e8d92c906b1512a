// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/store"
)

// ProductRepository implements auth.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool store.Pool
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(pool store.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create stores a product. An owner that no longer exists is reported as
// auth.ErrNotFound.
func (r *ProductRepository) Create(ctx context.Context, p *auth.Product) error {
	assets, err := json.Marshal(p.Assets)
	if err != nil {
		return oops.With("operation", "marshal product assets").Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO products (
			id, owner, name, price, quality, detail, origin, category,
			delivery_time, specification, assets, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID.String(),
		p.OwnerID.String(),
		p.Name,
		p.Price,
		p.Quality,
		p.Detail,
		p.Origin,
		p.Category,
		p.DeliveryTime,
		p.Specification,
		assets,
		p.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return oops.With("owner", p.OwnerID.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.With("operation", "insert product").
			With("owner", p.OwnerID.String()).
			Wrap(err)
	}
	return nil
}

var _ auth.ProductRepository = (*ProductRepository)(nil)
