package auth

import (
	"context"
	"strings"

	"medtrack/internal/domain"
)

// RequireRole fails with ErrForbidden unless user holds role.
func RequireRole(user domain.User, role domain.Role) error {
	if user.Role() != role {
		return ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin fails with ErrForbidden unless user is an admin or owns
// the resource.
func RequireOwnerOrAdmin(user domain.User, ownerID int64) error {
	if user.IsAdmin() || user.ID() == ownerID {
		return nil
	}
	return ErrForbidden
}

// Requirement is an authorization predicate evaluated after authentication.
type Requirement func(domain.User) error

// Authenticated accepts any resolved user.
func Authenticated() Requirement {
	return func(domain.User) error { return nil }
}

func Role(role domain.Role) Requirement {
	return func(u domain.User) error { return RequireRole(u, role) }
}

func OwnerOrAdmin(ownerID int64) Requirement {
	return func(u domain.User) error { return RequireOwnerOrAdmin(u, ownerID) }
}

// BearerToken extracts the credential from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// Gate authenticates a request from its Authorization header and then applies
// a Requirement. Authentication is always decided first, so an anonymous caller
// learns nothing about the target of the request.
type Gate struct {
	resolver *Resolver
}

func NewGate(resolver *Resolver) *Gate {
	return &Gate{resolver: resolver}
}

func (g *Gate) Authenticate(ctx context.Context, header string) (domain.User, error) {
	token, ok := BearerToken(header)
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	return g.resolver.ResolveFromToken(ctx, token)
}

func (g *Gate) Authorize(ctx context.Context, header string, req Requirement) (domain.User, error) {
	user, err := g.Authenticate(ctx, header)
	if err != nil {
		return domain.User{}, err
	}
	if req != nil {
		if err := req(user); err != nil {
			return domain.User{}, err
		}
	}
	return user, nil
}
