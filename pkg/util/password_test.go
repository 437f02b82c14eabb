package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"Acceptable", "secret1", nil},
		{"Exactly the minimum", "abcdef", nil},
		{"Multibyte runes count once", "pässwö", nil},
		{"Too short", "abc", ErrPasswordTooShort},
		{"Whitespace only", "        ", ErrPasswordBlank},
		{"Empty", "", ErrPasswordBlank},
		{"Past the bcrypt limit", strings.Repeat("x", 73), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("checkout-2024")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"))

	assert.True(t, VerifyPassword(hash, "checkout-2024"))
	assert.False(t, VerifyPassword(hash, "checkout-2025"))
	assert.False(t, VerifyPassword("not-a-hash", "checkout-2024"))

	again, err := HashPassword("checkout-2024")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "every hash is salted")

	_, err = HashPassword("abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
