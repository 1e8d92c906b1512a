// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Product is an item listed by a user.
type Product struct {
	ID            ulid.ULID `json:"id"`
	OwnerID       ulid.ULID `json:"owner"`
	Name          string    `json:"productName"`
	Price         string    `json:"productPrice"`
	Quality       string    `json:"productQuality"`
	Detail        string    `json:"productDetail"`
	Origin        string    `json:"productOrigin"`
	Category      string    `json:"productCategory"`
	DeliveryTime  string    `json:"productDeliveryTime"`
	Specification string    `json:"productSpecification"`
	Assets        []Asset   `json:"assets"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProductInput is the product metadata submitted with an upload.
type ProductInput struct {
	Name          string `json:"productName"`
	Price         string `json:"productPrice"`
	Quality       string `json:"productQuality"`
	Detail        string `json:"productDetail"`
	Origin        string `json:"productOrigin"`
	Category      string `json:"productCategory"`
	DeliveryTime  string `json:"productDeliveryTime"`
	Specification string `json:"productSpecification"`
}

// Validate requires a name, a price and a category.
func (in ProductInput) Validate() error {
	fe := FieldErrors{}
	fe.require("productName", in.Name)
	fe.require("productPrice", in.Price)
	fe.require("productCategory", in.Category)
	return fe.Err()
}

// NewProduct builds a Product owned by owner.
func NewProduct(owner ulid.ULID, in ProductInput, assets []Asset) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := checkAssets(assets, MaxProductAssets); err != nil {
		return nil, err
	}
	return &Product{
		ID:            ulid.Make(),
		OwnerID:       owner,
		Name:          strings.TrimSpace(in.Name),
		Price:         strings.TrimSpace(in.Price),
		Quality:       strings.TrimSpace(in.Quality),
		Detail:        strings.TrimSpace(in.Detail),
		Origin:        strings.TrimSpace(in.Origin),
		Category:      strings.TrimSpace(in.Category),
		DeliveryTime:  strings.TrimSpace(in.DeliveryTime),
		Specification: strings.TrimSpace(in.Specification),
		Assets:        assets,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ProductRepository manages product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
}
