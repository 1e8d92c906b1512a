// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package auth implements BestWishes accounts: registration, email
// verification, login, password reset and seller onboarding.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - an unverified buyer with a normalized email
//   - NewSellerAccount - validated business metadata and 1 to 5 assets
//   - NewProduct - validated product metadata and 1 to 4 assets
//
// Repository implementations receive pre-validated values from these
// constructors and do not re-check them.
//
// # Errors
//
// Every error returned by Service carries one of the Code* kinds as its oops
// code. Repositories return the ErrNotFound and ErrConflict sentinels without
// a code and Service maps them.
package auth
