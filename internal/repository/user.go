package repository

import (
	"context"
	"time"

	"medtrack/internal/domain"
)

// UserRepository defines persistence operations for User entities. It is the
// user directory consulted by the auth package.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context, page Page) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id int64, name, email string) (domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (UserStats, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// UserStats aggregates account counters for the admin dashboard.
type UserStats struct {
	Total  int
	Active int
}
