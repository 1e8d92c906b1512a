// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwishes/bestwishes/pkg/errutil"
)

func TestTooShort(t *testing.T) {
	tests := []struct {
		password string
		short    bool
	}{
		{"", true},
		{"abcde", true},
		{"abcdef", false},
		{"ééé", true},
		{"éééééé", false},
		{"日本語!", true},
		{"  abcd  ", false},
		{"      ", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.short, TooShort(tt.password))
		})
	}
}

func TestRegisterInput_Validate(t *testing.T) {
	valid := RegisterInput{FullName: "Jane", Email: "jane@x.com", Phone: "555-0100", Password: "Secret1"}

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"six ascii characters", "Secret", false},
		{"five characters", "Secre", true},
		{"three multibyte characters", "ééé", true},
		{"six multibyte characters", "éééééé", false},
		{"spaces count", "  abcd  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			in.Password = tt.password
			err := in.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, CodeValidation)
			errutil.AssertErrorContext(t, err, "fields", map[string]string{"password": "must be at least 6 characters"})
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		err := RegisterInput{}.Validate()
		errutil.AssertErrorCode(t, err, CodeValidation)
	})
}
