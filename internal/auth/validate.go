// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password, in characters, accepted at
// registration and reset.
const MinPasswordLength = 6

// TooShort reports whether password has fewer than MinPasswordLength
// characters. Whitespace counts.
func TooShort(password string) bool {
	return utf8.RuneCountInString(password) < MinPasswordLength
}

// Field length limits.
const (
	maxNameLength  = 100
	maxEmailLength = 254
	maxPhoneLength = 32
)

// FieldErrors maps request field names to a short reason.
type FieldErrors map[string]string

// Err converts the collected field errors into a validation error, or nil
// when there are none.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	return oops.Code(CodeValidation).
		With("fields", map[string]string(fe)).
		Errorf("invalid input: %s", strings.Join(names, ", "))
}

func (fe FieldErrors) require(name, value string) bool {
	if strings.TrimSpace(value) == "" {
		fe[name] = "required"
		return false
	}
	return true
}

// RegisterInput is the raw registration request.
type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate runs the registration request checks and reports every failing field.
func (in RegisterInput) Validate() error {
	fe := FieldErrors{}

	if fe.require("fullName", in.FullName) && len(in.FullName) > maxNameLength {
		fe["fullName"] = "too long"
	}
	if fe.require("email", in.Email) {
		if len(in.Email) > maxEmailLength || !validEmail(in.Email) {
			fe["email"] = "invalid email address"
		}
	}
	if fe.require("phone", in.Phone) && len(in.Phone) > maxPhoneLength {
		fe["phone"] = "too long"
	}
	if fe.require("password", in.Password) && TooShort(in.Password) {
		fe["password"] = "must be at least 6 characters"
	}

	return fe.Err()
}

// validEmail accepts a bare address with a dotted domain, no display name.
func validEmail(raw string) bool {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(raw, '@')
	return at > 0 && strings.Contains(raw[at+1:], ".")
}
