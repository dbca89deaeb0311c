package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medtrack/internal/domain"
	"medtrack/internal/storage"
)

// RecordDocument is the JSON form of a health record used by exports and the API.
type RecordDocument struct {
	ID                     int64     `json:"id"`
	UserID                 int64     `json:"user_id"`
	Height                 float64   `json:"height"`
	Weight                 float64   `json:"weight"`
	HeartRate              int       `json:"heart_rate"`
	BloodPressureSystolic  int       `json:"blood_pressure_systolic"`
	BloodPressureDiastolic int       `json:"blood_pressure_diastolic"`
	Symptoms               *string   `json:"symptoms"`
	CreatedAt              time.Time `json:"created_at"`
}

func NewRecordDocument(r domain.HealthRecord) RecordDocument {
	doc := RecordDocument{
		ID:                     r.ID,
		UserID:                 r.UserID,
		Height:                 r.Height,
		Weight:                 r.Weight,
		HeartRate:              r.HeartRate,
		BloodPressureSystolic:  r.BloodPressureSystolic,
		BloodPressureDiastolic: r.BloodPressureDiastolic,
		CreatedAt:              r.CreatedAt,
	}
	if r.Symptoms != "" {
		symptoms := r.Symptoms
		doc.Symptoms = &symptoms
	}
	return doc
}

func NewRecordDocuments(records []domain.HealthRecord) []RecordDocument {
	docs := make([]RecordDocument, 0, len(records))
	for _, r := range records {
		docs = append(docs, NewRecordDocument(r))
	}
	return docs
}

// ArchiveOptions locates archives in object storage.
type ArchiveOptions struct {
	Bucket    string
	KeyPrefix string
	URLExpiry time.Duration
}

type Archive struct {
	Key         string    `json:"key"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	RecordCount int       `json:"record_count"`
}

// ExportService writes a user's records to object storage as JSON archives.
type ExportService interface {
	Archive(ctx context.Context, caller domain.User, records []domain.HealthRecord) (Archive, error)
	ListArchives(ctx context.Context, caller domain.User) ([]storage.ObjectInfo, error)
	// Purge deletes every archive of userID.
	Purge(ctx context.Context, userID int64) error
}

type exportService struct {
	store  storage.Service
	opts   ArchiveOptions
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewExportService returns a service that fails with storage.ErrNotConfigured
// on every call when store is nil or no bucket is set.
func NewExportService(store storage.Service, opts ArchiveOptions, logger logrus.FieldLogger) ExportService {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 15 * time.Minute
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "exports"
	}
	return &exportService{
		store:  store,
		opts:   opts,
		logger: logger.WithField("component", "exports"),
		now:    time.Now,
	}
}

func (s *exportService) configured() bool {
	return s.store != nil && s.opts.Bucket != ""
}

func (s *exportService) userPrefix(userID int64) string {
	return path.Join(s.opts.KeyPrefix, strconv.FormatInt(userID, 10)) + "/"
}

func (s *exportService) Archive(ctx context.Context, caller domain.User, records []domain.HealthRecord) (Archive, error) {
	if !s.configured() {
		return Archive{}, storage.ErrNotConfigured
	}

	body, err := json.Marshal(NewRecordDocuments(records))
	if err != nil {
		return Archive{}, fmt.Errorf("encode archive: %w", err)
	}

	now := s.now().UTC()
	key := s.userPrefix(caller.ID()) + now.Format("20060102T150405Z") + "-" + uuid.NewString() + ".json"
	location, err := s.store.Put(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      s.opts.Bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return Archive{}, err
	}

	url, err := s.store.GetObjectURL(ctx, s.opts.Bucket, key, s.opts.URLExpiry)
	if err != nil {
		return Archive{}, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": caller.ID(), "key": key, "records": len(records)}).Info("archive uploaded")
	return Archive{
		Key:         key,
		Location:    location,
		URL:         url,
		ExpiresAt:   now.Add(s.opts.URLExpiry),
		RecordCount: len(records),
	}, nil
}

func (s *exportService) ListArchives(ctx context.Context, caller domain.User) ([]storage.ObjectInfo, error) {
	if !s.configured() {
		return nil, storage.ErrNotConfigured
	}
	return s.store.ListObjects(ctx, s.opts.Bucket, s.userPrefix(caller.ID()))
}

func (s *exportService) Purge(ctx context.Context, userID int64) error {
	if !s.configured() {
		return nil
	}
	return s.store.DeletePrefix(ctx, s.opts.Bucket, s.userPrefix(userID))
}
