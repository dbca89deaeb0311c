package repository

import (
	"context"
	"time"

	"medtrack/internal/domain"
)

// HealthRecordRepository exposes persistence operations for health records.
type HealthRecordRepository interface {
	Create(ctx context.Context, record *domain.HealthRecord) error
	Get(ctx context.Context, id int64) (*domain.HealthRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]domain.HealthRecord, error)
	Update(ctx context.Context, record *domain.HealthRecord) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// RecordFilter narrows a record listing. A nil UserID lists every user's records.
type RecordFilter struct {
	UserID *int64
	Page   Page
}
