package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

// UserDirectory is the read side of the user store the resolver depends on.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

// Resolver turns credentials or bearer tokens into users. It never caches a
// resolved identity: every call reads the directory, so deleting or
// deactivating a user invalidates their outstanding tokens.
type Resolver struct {
	users  UserDirectory
	hasher *Hasher
	tokens *TokenCodec
	logger logrus.FieldLogger
}

func NewResolver(users UserDirectory, hasher *Hasher, tokens *TokenCodec, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.WithField("component", "auth"),
	}
}

// Authenticate checks an email/password pair. Every credential failure yields
// ErrInvalidCredentials; directory failures are returned as they are.
func (r *Resolver) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, fmt.Errorf("lookup user: %w", err)
		}
		if err := r.hasher.burn(ctx, password); err != nil {
			return domain.User{}, err
		}
		r.logger.WithField("reason", "unknown_email").Warn("login rejected")
		return domain.User{}, ErrInvalidCredentials
	}

	ok, err := r.hasher.Verify(ctx, password, user.PasswordHash())
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		r.logger.WithFields(logrus.Fields{"reason": "bad_password", "user_id": user.ID()}).Warn("login rejected")
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.IsActive() {
		r.logger.WithFields(logrus.Fields{"reason": "inactive", "user_id": user.ID()}).Warn("login rejected")
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ResolveFromToken decodes token and loads its subject. Token errors and
// unknown or inactive subjects yield ErrUnauthenticated wrapping the cause.
func (r *Resolver) ResolveFromToken(ctx context.Context, token string) (domain.User, error) {
	payload, err := r.tokens.Decode(token)
	if err != nil {
		r.logger.WithField("reason", err.Error()).Debug("token rejected")
		return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := r.users.GetByID(ctx, payload.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.WithField("user_id", payload.Subject).Warn("token subject no longer exists")
			return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive() {
		r.logger.WithField("user_id", user.ID()).Warn("token subject is deactivated")
		return domain.User{}, fmt.Errorf("%w: user %d is inactive", ErrUnauthenticated, user.ID())
	}
	return user, nil
}

// IssueToken signs a fresh access token for userID.
func (r *Resolver) IssueToken(userID int64) (string, error) {
	return r.tokens.Issue(userID)
}

// TokenTTL is the lifetime of tokens returned by IssueToken.
func (r *Resolver) TokenTTL() time.Duration { return r.tokens.TTL() }
