// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by repositories when a uniqueness constraint
// (email, seller owner) rejects a write.
var ErrConflict = errors.New("already exists")

// Error kinds. Every failure returned by Service carries exactly one of
// these as its oops code.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidID          = "INVALID_ID"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeAlreadySeller      = "ALREADY_SELLER"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNotVerified        = "NOT_VERIFIED"
	CodeSamePassword       = "SAME_PASSWORD"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeUploadRejected     = "UPLOAD_REJECTED"
	CodeStorageFailure     = "STORAGE_FAILURE"
)
