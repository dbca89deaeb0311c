package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

const recordColumns = `id, user_id, height, weight, heart_rate, blood_pressure_systolic, blood_pressure_diastolic, symptoms, created_at`

type HealthRecordRepository struct {
	db *sql.DB
}

func NewHealthRecordRepository(db *sql.DB) repository.HealthRecordRepository {
	return &HealthRecordRepository{db: db}
}

func (r *HealthRecordRepository) Create(ctx context.Context, record *domain.HealthRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	err := r.db.QueryRowContext(ctx, `
INSERT INTO health_records (user_id, height, weight, heart_rate, blood_pressure_systolic, blood_pressure_diastolic, symptoms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		record.UserID,
		record.Height,
		record.Weight,
		record.HeartRate,
		record.BloodPressureSystolic,
		record.BloodPressureDiastolic,
		record.Symptoms,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

func (r *HealthRecordRepository) Get(ctx context.Context, id int64) (*domain.HealthRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM health_records
WHERE id = $1`,
		id,
	)
	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *HealthRecordRepository) List(ctx context.Context, filter repository.RecordFilter) ([]domain.HealthRecord, error) {
	page := filter.Page.Normalize()

	var (
		rows *sql.Rows
		err  error
	)
	if filter.UserID != nil {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM health_records
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`,
			*filter.UserID,
			limitArg(page),
			page.Offset,
		)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM health_records
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`,
			limitArg(page),
			page.Offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list health records: %w", err)
	}
	defer rows.Close()

	var records []domain.HealthRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health records: %w", err)
	}
	return records, nil
}

func (r *HealthRecordRepository) Update(ctx context.Context, record *domain.HealthRecord) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE health_records
SET height = $1,
	weight = $2,
	heart_rate = $3,
	blood_pressure_systolic = $4,
	blood_pressure_diastolic = $5,
	symptoms = $6
WHERE id = $7`,
		record.Height,
		record.Weight,
		record.HeartRate,
		record.BloodPressureSystolic,
		record.BloodPressureDiastolic,
		record.Symptoms,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update health record: %w", err)
	}
	return expectAffected(res)
}

func (r *HealthRecordRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM health_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete health record: %w", err)
	}
	return expectAffected(res)
}

func (r *HealthRecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count health records: %w", err)
	}
	return n, nil
}

func (r *HealthRecordRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM health_records
WHERE created_at >= $1 AND created_at < $2`,
		from.UTC(),
		to.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count health records: %w", err)
	}
	return n, nil
}

func scanRecord(row interface {
	Scan(dest ...any) error
}) (domain.HealthRecord, error) {
	var record domain.HealthRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Height,
		&record.Weight,
		&record.HeartRate,
		&record.BloodPressureSystolic,
		&record.BloodPressureDiastolic,
		&record.Symptoms,
		&record.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HealthRecord{}, fmt.Errorf("health record: %w", repository.ErrNotFound)
		}
		return domain.HealthRecord{}, fmt.Errorf("scan health record: %w", err)
	}
	return record, nil
}
