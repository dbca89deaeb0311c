package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

var (
	// ErrUserAlreadyExists is returned when the email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrSelfModification is returned when an admin tries to deactivate or delete their own account.
	ErrSelfModification = errors.New("cannot deactivate or delete your own account")
)

// ValidationError describes rejected client input. Its message is safe to
// return to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NewAccount is the input for registration and provisioning.
type NewAccount struct {
	Email    string
	Name     string
	Password string
}

// UserService describes user lifecycle operations.
type UserService interface {
	// Register creates a regular user. Any elevated role must go through CreateUser.
	Register(ctx context.Context, in NewAccount) (domain.User, error)
	// CreateUser is the trusted provisioning path used by admins.
	CreateUser(ctx context.Context, in NewAccount, role domain.Role) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context, page repository.Page) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id int64, name, email string) (domain.User, error)
	SetActive(ctx context.Context, actor domain.User, id int64, active bool) (domain.User, error)
	Delete(ctx context.Context, actor domain.User, id int64) error
	// EnsureAdmin creates the bootstrap admin unless the email is already taken.
	EnsureAdmin(ctx context.Context, in NewAccount) (domain.User, bool, error)
}

type userService struct {
	users  repository.UserRepository
	hasher *auth.Hasher
	logger logrus.FieldLogger
}

func NewUserService(users repository.UserRepository, hasher *auth.Hasher, logger logrus.FieldLogger) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
		logger: logger.WithField("component", "users"),
	}
}

func (s *userService) Register(ctx context.Context, in NewAccount) (domain.User, error) {
	return s.create(ctx, in, domain.RoleUser)
}

func (s *userService) CreateUser(ctx context.Context, in NewAccount, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, invalid("role must be one of user, admin")
	}
	return s.create(ctx, in, role)
}

func (s *userService) create(ctx context.Context, in NewAccount, role domain.Role) (domain.User, error) {
	email, name, err := normalizeProfile(in.Name, in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if n := len(in.Password); n < auth.MinPasswordLength || n > auth.MaxPasswordLength {
		return domain.User{}, invalid("password must be between %d and %d bytes", auth.MinPasswordLength, auth.MaxPasswordLength)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, err
	}

	user, err := domain.NewUser(domain.UserParams{
		Email:        email,
		Name:         name,
		PasswordHash: digest,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return domain.User{}, invalid("%v", err)
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return domain.User{}, ErrUserAlreadyExists
		}
		return domain.User{}, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": created.ID(), "role": created.Role()}).Info("user created")
	return created.Sanitized(), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

func (s *userService) List(ctx context.Context, page repository.Page) ([]domain.User, error) {
	users, err := s.users.List(ctx, page)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, name, email string) (domain.User, error) {
	email, name, err := normalizeProfile(name, email)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.UpdateProfile(ctx, id, name, email)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return domain.User{}, ErrUserAlreadyExists
		}
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

func (s *userService) SetActive(ctx context.Context, actor domain.User, id int64, active bool) (domain.User, error) {
	if !active && actor.ID() == id {
		return domain.User{}, ErrSelfModification
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return domain.User{}, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": id, "active": active, "by": actor.ID()}).Info("user status changed")
	return s.GetByID(ctx, id)
}

func (s *userService) Delete(ctx context.Context, actor domain.User, id int64) error {
	if actor.ID() == id {
		return ErrSelfModification
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"user_id": id, "by": actor.ID()}).Info("user deleted")
	return nil
}

func (s *userService) EnsureAdmin(ctx context.Context, in NewAccount) (domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	switch {
	case err == nil:
		return existing.Sanitized(), false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.User{}, false, err
	}

	user, err := s.create(ctx, in, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func normalizeProfile(name, email string) (string, string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", invalid("invalid email address")
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return "", "", invalid("name must be between 1 and 100 characters")
	}
	return email, name, nil
}
