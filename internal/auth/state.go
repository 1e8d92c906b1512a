// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import "github.com/samber/oops"

// AccountState is a user's position in {Unverified, Verified} x {Buyer, Seller}.
// Both axes only move forward.
type AccountState struct {
	Verified bool
	Seller   bool
}

// MarkVerified moves Unverified to Verified.
func (s AccountState) MarkVerified() (AccountState, error) {
	if s.Verified {
		return s, oops.Code(CodeAlreadyVerified).Errorf("Account already Verified")
	}
	s.Verified = true
	return s, nil
}

// MarkSeller moves Buyer to Seller.
func (s AccountState) MarkSeller() (AccountState, error) {
	if s.Seller {
		return s, oops.Code(CodeAlreadySeller).Errorf("Already a seller")
	}
	s.Seller = true
	return s, nil
}

// String renders the state as e.g. "verified/buyer".
func (s AccountState) String() string {
	v, r := "unverified", "buyer"
	if s.Verified {
		v = "verified"
	}
	if s.Seller {
		r = "seller"
	}
	return v + "/" + r
}
