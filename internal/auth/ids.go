// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ParseID checks that raw is a well-formed identifier before any lookup is
// attempted. An empty value is a validation error; anything else that is not
// a ULID is an invalid id.
func ParseID(raw string) (ulid.ULID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ulid.ULID{}, oops.Code(CodeValidation).
			With("fields", map[string]string{"userId": "required"}).
			Errorf("missing parameters")
	}
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidID).With("id", raw).Errorf("invalid user ID")
	}
	return id, nil
}
