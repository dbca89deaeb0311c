package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the single authoritative access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts s into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

var (
	ErrEmptyEmail  = errors.New("email is required")
	ErrInvalidRole = errors.New("invalid role")
	ErrInvalidID   = errors.New("invalid user id")
)

// UserParams carries the fields used to build a User.
type UserParams struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// User is an account known to the user directory. Values are immutable once
// built; use NewUser to construct one.
type User struct {
	id           int64
	email        string
	name         string
	passwordHash string
	role         Role
	active       bool
	createdAt    time.Time
}

// NewUser validates p and returns the corresponding User.
func NewUser(p UserParams) (User, error) {
	if p.ID < 0 {
		return User{}, ErrInvalidID
	}
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return User{}, ErrEmptyEmail
	}
	if !p.Role.Valid() {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidRole, p.Role)
	}
	return User{
		id:           p.ID,
		email:        email,
		name:         strings.TrimSpace(p.Name),
		passwordHash: p.PasswordHash,
		role:         p.Role,
		active:       p.Active,
		createdAt:    p.CreatedAt,
	}, nil
}

func (u User) ID() int64            { return u.id }
func (u User) Email() string        { return u.email }
func (u User) Name() string         { return u.name }
func (u User) PasswordHash() string { return u.passwordHash }
func (u User) Role() Role           { return u.role }
func (u User) IsActive() bool       { return u.active }
func (u User) CreatedAt() time.Time { return u.createdAt }
func (u User) IsAdmin() bool        { return u.role == RoleAdmin }

// Params returns the fields of u, suitable for deriving a modified copy.
func (u User) Params() UserParams {
	return UserParams{
		ID:           u.id,
		Email:        u.email,
		Name:         u.name,
		PasswordHash: u.passwordHash,
		Role:         u.role,
		Active:       u.active,
		CreatedAt:    u.createdAt,
	}
}

// Sanitized returns a copy of u without the password hash.
func (u User) Sanitized() User {
	u.passwordHash = ""
	return u
}

// String never includes the password hash.
func (u User) String() string {
	return fmt.Sprintf("User{id=%d email=%s role=%s}", u.id, u.email, u.role)
}
