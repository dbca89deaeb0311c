package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Status        string   `json:"status"`
	ImportedCount int      `json:"imported_count"`
	Errors        []string `json:"errors"`
}

// HealthRecordService applies ownership rules on top of the record store. The
// caller is always an authenticated user; a missing record is reported before
// an ownership failure.
type HealthRecordService interface {
	Create(ctx context.Context, caller domain.User, record domain.HealthRecord) (domain.HealthRecord, error)
	Get(ctx context.Context, caller domain.User, id int64) (domain.HealthRecord, error)
	List(ctx context.Context, caller domain.User, page repository.Page) ([]domain.HealthRecord, error)
	ListForUser(ctx context.Context, caller domain.User, userID int64) ([]domain.HealthRecord, error)
	Update(ctx context.Context, caller domain.User, id int64, patch domain.HealthRecordPatch) (domain.HealthRecord, error)
	Delete(ctx context.Context, caller domain.User, id int64) error
	Export(ctx context.Context, caller domain.User) ([]domain.HealthRecord, error)
	Import(ctx context.Context, caller domain.User, items []map[string]any) (ImportResult, error)
}

type healthRecordService struct {
	records repository.HealthRecordRepository
	users   repository.UserRepository
	now     func() time.Time
}

func NewHealthRecordService(records repository.HealthRecordRepository, users repository.UserRepository) HealthRecordService {
	return &healthRecordService{records: records, users: users, now: time.Now}
}

func (s *healthRecordService) Create(ctx context.Context, caller domain.User, record domain.HealthRecord) (domain.HealthRecord, error) {
	record.ID = 0
	record.UserID = caller.ID()
	record.CreatedAt = s.now()
	if err := record.Validate(); err != nil {
		return domain.HealthRecord{}, err
	}
	if err := s.records.Create(ctx, &record); err != nil {
		return domain.HealthRecord{}, err
	}
	return record, nil
}

func (s *healthRecordService) Get(ctx context.Context, caller domain.User, id int64) (domain.HealthRecord, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	if err := auth.RequireOwnerOrAdmin(caller, record.UserID); err != nil {
		return domain.HealthRecord{}, err
	}
	return *record, nil
}

// List returns every record for admins and the caller's own records otherwise.
func (s *healthRecordService) List(ctx context.Context, caller domain.User, page repository.Page) ([]domain.HealthRecord, error) {
	filter := repository.RecordFilter{Page: page}
	if !caller.IsAdmin() {
		id := caller.ID()
		filter.UserID = &id
	}
	return s.records.List(ctx, filter)
}

func (s *healthRecordService) ListForUser(ctx context.Context, caller domain.User, userID int64) ([]domain.HealthRecord, error) {
	if err := auth.RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.records.List(ctx, repository.RecordFilter{
		UserID: &userID,
		Page:   repository.Page{Limit: repository.Unlimited},
	})
}

func (s *healthRecordService) Update(ctx context.Context, caller domain.User, id int64, patch domain.HealthRecordPatch) (domain.HealthRecord, error) {
	current, err := s.Get(ctx, caller, id)
	if err != nil {
		return domain.HealthRecord{}, err
	}
	updated := current.Apply(patch)
	if err := updated.Validate(); err != nil {
		return domain.HealthRecord{}, err
	}
	if err := s.records.Update(ctx, &updated); err != nil {
		return domain.HealthRecord{}, err
	}
	return updated, nil
}

func (s *healthRecordService) Delete(ctx context.Context, caller domain.User, id int64) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	return s.records.Delete(ctx, id)
}

// Export returns all of the caller's records, newest first.
func (s *healthRecordService) Export(ctx context.Context, caller domain.User) ([]domain.HealthRecord, error) {
	id := caller.ID()
	return s.records.List(ctx, repository.RecordFilter{
		UserID: &id,
		Page:   repository.Page{Limit: repository.Unlimited},
	})
}

// Import stores each item as a record of the caller. Items are independent:
// a bad item is reported and skipped.
func (s *healthRecordService) Import(ctx context.Context, caller domain.User, items []map[string]any) (ImportResult, error) {
	result := ImportResult{Errors: []string{}}
	for i, item := range items {
		record, err := s.recordFromItem(item)
		if err == nil {
			record.UserID = caller.ID()
			err = record.Validate()
		}
		if err == nil {
			err = s.records.Create(ctx, &record)
			if ctx.Err() != nil {
				return ImportResult{}, ctx.Err()
			}
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		result.ImportedCount++
	}

	result.Status = "success"
	if len(result.Errors) > 0 {
		result.Status = "partial"
	}
	return result, nil
}

func (s *healthRecordService) recordFromItem(item map[string]any) (domain.HealthRecord, error) {
	var (
		r   domain.HealthRecord
		err error
	)
	if r.Height, err = floatField(item, "height"); err != nil {
		return r, err
	}
	if r.Weight, err = floatField(item, "weight"); err != nil {
		return r, err
	}
	if r.HeartRate, err = intField(item, "heart_rate", "heartRate"); err != nil {
		return r, err
	}
	if r.BloodPressureSystolic, err = intField(item, "blood_pressure_systolic", "bloodPressureSystolic"); err != nil {
		return r, err
	}
	if r.BloodPressureDiastolic, err = intField(item, "blood_pressure_diastolic", "bloodPressureDiastolic"); err != nil {
		return r, err
	}
	if v, ok := lookup(item, "symptoms"); ok && v != nil {
		str, ok := v.(string)
		if !ok {
			return r, fmt.Errorf("symptoms must be a string")
		}
		r.Symptoms = str
	}

	r.CreatedAt = s.now()
	if v, ok := lookup(item, "created_at", "createdAt"); ok && v != nil && v != "" {
		str, ok := v.(string)
		if !ok {
			return r, fmt.Errorf("created_at must be an ISO 8601 string")
		}
		if r.CreatedAt, err = parseTimestamp(str); err != nil {
			return r, err
		}
	}
	return r, nil
}

func lookup(item map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func floatField(item map[string]any, keys ...string) (float64, error) {
	v, ok := lookup(item, keys...)
	if !ok {
		return 0, fmt.Errorf("%s is required", keys[0])
	}

	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		err = errNotNumber
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a finite number", keys[0])
	}
	return f, nil
}

var errNotNumber = errors.New("not a number")

func intField(item map[string]any, keys ...string) (int, error) {
	f, err := floatField(item, keys...)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%s must be an integer", keys[0])
	}
	return int(f), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("created_at %q is not an ISO 8601 timestamp", s)
}
