package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	created := time.Date(2024, 5, 20, 14, 30, 0, 0, time.UTC)

	u, err := NewUser(UserParams{
		ID:           7,
		Email:        "  john@example.com ",
		Name:         "John",
		PasswordHash: "hash",
		Role:         RoleUser,
		Active:       true,
		CreatedAt:    created,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID())
	assert.Equal(t, "john@example.com", u.Email())
	assert.Equal(t, RoleUser, u.Role())
	assert.True(t, u.IsActive())
	assert.False(t, u.IsAdmin())
	assert.Equal(t, created, u.CreatedAt())
}

func TestNewUser_Rejects(t *testing.T) {
	tests := []struct {
		name string
		p    UserParams
		want error
	}{
		{"empty email", UserParams{Email: " ", Role: RoleUser}, ErrEmptyEmail},
		{"undefined role", UserParams{Email: "a@b.c", Role: "superuser"}, ErrInvalidRole},
		{"missing role", UserParams{Email: "a@b.c"}, ErrInvalidRole},
		{"negative id", UserParams{ID: -1, Email: "a@b.c", Role: RoleUser}, ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.p)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestUser_SanitizedAndString(t *testing.T) {
	u, err := NewUser(UserParams{ID: 1, Email: "a@b.c", PasswordHash: "$2a$10$secret", Role: RoleAdmin})
	require.NoError(t, err)

	assert.Empty(t, u.Sanitized().PasswordHash())
	assert.Equal(t, "$2a$10$secret", u.PasswordHash(), "original value must not change")
	assert.NotContains(t, u.String(), "secret")
	assert.True(t, u.IsAdmin())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("root")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
