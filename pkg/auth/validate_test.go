package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name            string
		email           string
		password        string
		confirmPassword string
		want            []string
	}{
		{
			name:            "valid",
			email:           "rider@example.com",
			password:        "secret123",
			confirmPassword: "secret123",
			want:            nil,
		},
		{
			name:            "short password",
			email:           "rider@example.com",
			password:        "abc",
			confirmPassword: "abc",
			want:            []string{"Password must be at least 6 characters long"},
		},
		{
			name:            "invalid email",
			email:           "not-an-email",
			password:        "secret123",
			confirmPassword: "secret123",
			want:            []string{"Please enter a valid email address"},
		},
		{
			name:            "empty email",
			email:           "",
			password:        "secret123",
			confirmPassword: "secret123",
			want:            []string{"Please enter a valid email address"},
		},
		{
			name:            "password mismatch",
			email:           "rider@example.com",
			password:        "secret123",
			confirmPassword: "secret124",
			want:            []string{"Passwords do not match"},
		},
		{
			name:            "everything wrong",
			email:           "",
			password:        "abc",
			confirmPassword: "abcd",
			want: []string{
				"Password must be at least 6 characters long",
				"Please enter a valid email address",
				"Passwords do not match",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateRegistration(tt.email, tt.password, tt.confirmPassword)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRegistration_FreshResultEachCall(t *testing.T) {
	// The error list is recomputed from scratch; repeated submits must not
	// accumulate messages.
	first := ValidateRegistration("", "abc", "abcd")
	second := ValidateRegistration("", "abc", "abcd")

	assert.Equal(t, first, second)
	assert.Len(t, second, 3)
}
