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

// Asset limits per record.
const (
	MaxSellerAssets  = 5
	MaxProductAssets = 4
)

// Asset references an uploaded file by its retrievable URL.
type Asset struct {
	Field string `json:"field,omitempty"`
	URL   string `json:"URL"`
}

// SellerAccount is the one-to-one seller extension of a User. It is not
// edited after creation.
type SellerAccount struct {
	ID           ulid.ULID `json:"id"`
	OwnerID      ulid.ULID `json:"owner"`
	SellerName   string    `json:"sellerName"`
	StoreName    string    `json:"storeName"`
	StoreAddress string    `json:"storeAddress"`
	StorePhone   string    `json:"storePhone"`
	Country      string    `json:"country"`
	DOB          string    `json:"dob"`
	City         string    `json:"city"`
	Assets       []Asset   `json:"assets"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SellerInput is the business metadata submitted during seller onboarding.
type SellerInput struct {
	SellerName   string `json:"sellerName"`
	StoreName    string `json:"storeName"`
	StoreAddress string `json:"storeAddress"`
	StorePhone   string `json:"storePhone"`
	Country      string `json:"country"`
	DOB          string `json:"dob"`
	City         string `json:"city"`
}

// Validate requires every business field except date of birth.
func (in SellerInput) Validate() error {
	fe := FieldErrors{}
	fe.require("sellerName", in.SellerName)
	fe.require("storeName", in.StoreName)
	fe.require("storeAddress", in.StoreAddress)
	fe.require("storePhone", in.StorePhone)
	fe.require("country", in.Country)
	fe.require("city", in.City)
	return fe.Err()
}

// NewSellerAccount builds a SellerAccount for owner.
func NewSellerAccount(owner ulid.ULID, in SellerInput, assets []Asset) (*SellerAccount, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := checkAssets(assets, MaxSellerAssets); err != nil {
		return nil, err
	}
	return &SellerAccount{
		ID:           ulid.Make(),
		OwnerID:      owner,
		SellerName:   strings.TrimSpace(in.SellerName),
		StoreName:    strings.TrimSpace(in.StoreName),
		StoreAddress: strings.TrimSpace(in.StoreAddress),
		StorePhone:   strings.TrimSpace(in.StorePhone),
		Country:      strings.TrimSpace(in.Country),
		DOB:          strings.TrimSpace(in.DOB),
		City:         strings.TrimSpace(in.City),
		Assets:       assets,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func checkAssets(assets []Asset, limit int) error {
	if len(assets) == 0 {
		return oops.Code(CodeValidation).
			With("fields", map[string]string{"assets": "required"}).
			Errorf("at least one asset is required")
	}
	if len(assets) > limit {
		return oops.Code(CodeUploadRejected).
			With("max", limit).
			With("got", len(assets)).
			Errorf("too many assets: at most %d allowed", limit)
	}
	for _, a := range assets {
		if strings.TrimSpace(a.URL) == "" {
			return oops.Code(CodeUploadRejected).With("field", a.Field).Errorf("asset is missing a URL")
		}
	}
	return nil
}

// SellerRepository manages seller account persistence.
type SellerRepository interface {
	// Create stores a seller account. Returns ErrConflict if the owner
	// already has one.
	Create(ctx context.Context, seller *SellerAccount) error

	// GetByOwner retrieves the seller account of a user, or ErrNotFound.
	GetByOwner(ctx context.Context, owner ulid.ULID) (*SellerAccount, error)
}
