package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/repository"
	"medtrack/internal/repository/sqlite"
	"medtrack/internal/storage"
)

type env struct {
	users     repository.UserRepository
	records   repository.HealthRecordRepository
	hasher    *auth.Hasher
	userSvc   UserService
	recordSvc HealthRecordService
	analytics *analyticsService
	logger    logrus.FieldLogger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))

	logger, _ := test.NewNullLogger()
	e := &env{
		users:   sqlite.NewUserRepository(db),
		records: sqlite.NewHealthRecordRepository(db),
		hasher:  auth.NewHasher(bcrypt.MinCost, 2),
		logger:  logger,
	}
	e.userSvc = NewUserService(e.users, e.hasher, logger)
	e.recordSvc = NewHealthRecordService(e.records, e.users)
	e.analytics = NewAnalyticsService(e.users, e.records).(*analyticsService)
	return e
}

func (e *env) register(t *testing.T, email string, role domain.Role) domain.User {
	t.Helper()
	u, err := e.userSvc.CreateUser(context.Background(), NewAccount{Email: email, Name: "N " + email, Password: "password123"}, role)
	require.NoError(t, err)
	return u
}

func sampleRecord() domain.HealthRecord {
	return domain.HealthRecord{
		Height:                 175,
		Weight:                 70,
		HeartRate:              72,
		BloodPressureSystolic:  120,
		BloodPressureDiastolic: 80,
	}
}

func TestUserService_RegisterForcesUserRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.userSvc.Register(ctx, NewAccount{Email: "a@example.com", Name: "A", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role())
	assert.Empty(t, u.PasswordHash(), "returned users are sanitized")

	stored, err := e.users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash())
	ok, err := e.hasher.Verify(ctx, "password123", stored.PasswordHash())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.userSvc.Register(ctx, NewAccount{Email: "a@example.com", Name: "A", Password: "password123"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestUserService_RegisterValidation(t *testing.T) {
	e := newEnv(t)
	tests := []NewAccount{
		{Email: "not-an-email", Name: "A", Password: "password123"},
		{Email: "a@example.com", Name: "", Password: "password123"},
		{Email: "a@example.com", Name: strings.Repeat("n", 101), Password: "password123"},
		{Email: "a@example.com", Name: "A", Password: "short"},
		{Email: "a@example.com", Name: "A", Password: strings.Repeat("p", 73)},
	}
	for _, in := range tests {
		_, err := e.userSvc.Register(context.Background(), in)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "input %+v", in)
	}
}

func TestUserService_CreateUserWithRole(t *testing.T) {
	e := newEnv(t)
	admin := e.register(t, "admin@example.com", domain.RoleAdmin)
	assert.Equal(t, domain.RoleAdmin, admin.Role())

	_, err := e.userSvc.CreateUser(context.Background(), NewAccount{Email: "x@example.com", Name: "X", Password: "password123"}, "root")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUserService_ActivationAndDeletion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.register(t, "admin@example.com", domain.RoleAdmin)
	user := e.register(t, "user@example.com", domain.RoleUser)

	got, err := e.userSvc.SetActive(ctx, admin, user.ID(), false)
	require.NoError(t, err)
	assert.False(t, got.IsActive())

	_, err = e.userSvc.SetActive(ctx, admin, admin.ID(), false)
	assert.ErrorIs(t, err, ErrSelfModification)
	assert.ErrorIs(t, e.userSvc.Delete(ctx, admin, admin.ID()), ErrSelfModification)

	_, err = e.userSvc.SetActive(ctx, admin, 999, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, e.userSvc.Delete(ctx, admin, user.ID()))
	_, err = e.userSvc.GetByID(ctx, user.ID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := NewAccount{Email: "root@example.com", Name: "Root", Password: "password123"}

	u, created, err := e.userSvc.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin())

	again, created, err := e.userSvc.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID(), again.ID())
}

func TestUserService_UpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.register(t, "a@example.com", domain.RoleUser)
	e.register(t, "b@example.com", domain.RoleUser)

	got, err := e.userSvc.UpdateProfile(ctx, a.ID(), " Alice ", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name())

	_, err = e.userSvc.UpdateProfile(ctx, a.ID(), "Alice", "b@example.com")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestHealthRecordService_Ownership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.register(t, "owner@example.com", domain.RoleUser)
	other := e.register(t, "other@example.com", domain.RoleUser)
	admin := e.register(t, "admin@example.com", domain.RoleAdmin)

	rec, err := e.recordSvc.Create(ctx, owner, sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, owner.ID(), rec.UserID)

	_, err = e.recordSvc.Get(ctx, owner, rec.ID)
	assert.NoError(t, err)
	_, err = e.recordSvc.Get(ctx, admin, rec.ID)
	assert.NoError(t, err)
	_, err = e.recordSvc.Get(ctx, other, rec.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, err = e.recordSvc.Get(ctx, other, rec.ID+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	hr := 88
	_, err = e.recordSvc.Update(ctx, other, rec.ID, domain.HealthRecordPatch{HeartRate: &hr})
	assert.ErrorIs(t, err, auth.ErrForbidden)
	updated, err := e.recordSvc.Update(ctx, owner, rec.ID, domain.HealthRecordPatch{HeartRate: &hr})
	require.NoError(t, err)
	assert.Equal(t, 88, updated.HeartRate)

	dia := 130
	_, err = e.recordSvc.Update(ctx, owner, rec.ID, domain.HealthRecordPatch{BloodPressureDiastolic: &dia})
	assert.ErrorIs(t, err, domain.ErrInvalidHealthRecord)

	assert.ErrorIs(t, e.recordSvc.Delete(ctx, other, rec.ID), auth.ErrForbidden)
	assert.NoError(t, e.recordSvc.Delete(ctx, admin, rec.ID))
}

func TestHealthRecordService_ListScopes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.register(t, "a@example.com", domain.RoleUser)
	b := e.register(t, "b@example.com", domain.RoleUser)
	admin := e.register(t, "admin@example.com", domain.RoleAdmin)

	for _, u := range []domain.User{a, a, b} {
		_, err := e.recordSvc.Create(ctx, u, sampleRecord())
		require.NoError(t, err)
	}

	own, err := e.recordSvc.List(ctx, a, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	all, err := e.recordSvc.List(ctx, admin, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := e.recordSvc.List(ctx, admin, repository.Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = e.recordSvc.ListForUser(ctx, b, a.ID())
	assert.ErrorIs(t, err, auth.ErrForbidden)
	forA, err := e.recordSvc.ListForUser(ctx, admin, a.ID())
	require.NoError(t, err)
	assert.Len(t, forA, 2)
	_, err = e.recordSvc.ListForUser(ctx, admin, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHealthRecordService_Import(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "a@example.com", domain.RoleUser)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(`[
		{"height": 180, "weight": 80, "heart_rate": 70, "blood_pressure_systolic": 120, "blood_pressure_diastolic": 80, "created_at": "2024-02-03T04:05:06"},
		{"height": 165, "weight": 60, "heartRate": 65, "bloodPressureSystolic": 115, "bloodPressureDiastolic": 75, "symptoms": "cough"},
		{"height": 165, "weight": 60, "heart_rate": 65, "blood_pressure_systolic": 100, "blood_pressure_diastolic": 120},
		{"weight": 60}
	]`), &items))

	res, err := e.recordSvc.Import(ctx, u, items)
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Status)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Len(t, res.Errors, 2)

	exported, err := e.recordSvc.Export(ctx, u)
	require.NoError(t, err)
	require.Len(t, exported, 2)
	assert.Equal(t, "cough", exported[0].Symptoms, "newest first")
	assert.Equal(t, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), exported[1].CreatedAt.UTC())

	res, err = e.recordSvc.Import(ctx, u, []map[string]any{
		{"height": 170.0, "weight": "Inf", "heart_rate": 70.0, "blood_pressure_systolic": 120.0, "blood_pressure_diastolic": 80.0},
		{"height": "NaN", "weight": 70.0, "heart_rate": 70.0, "blood_pressure_systolic": 120.0, "blood_pressure_diastolic": 80.0},
		{"height": 170.0, "weight": 70.0, "heart_rate": "+Inf", "blood_pressure_systolic": 120.0, "blood_pressure_diastolic": 80.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Status)
	assert.Zero(t, res.ImportedCount)
	assert.Len(t, res.Errors, 3)

	exported, err = e.recordSvc.Export(ctx, u)
	require.NoError(t, err)
	assert.Len(t, exported, 2)
	_, err = json.Marshal(NewRecordDocuments(exported))
	assert.NoError(t, err)

	res, err = e.recordSvc.Import(ctx, u, nil)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Empty(t, res.Errors)
}

func TestAnalyticsService_Summary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "a@example.com", domain.RoleUser)

	now := time.Now().UTC()
	e.analytics.now = func() time.Time { return now }
	thisMonth := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC)

	add := func(created time.Time, mutate func(*domain.HealthRecord)) {
		r := sampleRecord()
		r.UserID = u.ID()
		r.CreatedAt = created
		mutate(&r)
		require.NoError(t, e.records.Create(ctx, &r))
	}
	add(thisMonth, func(*domain.HealthRecord) {})
	add(thisMonth, func(r *domain.HealthRecord) { r.HeartRate = 105 })
	add(thisMonth.AddDate(0, -2, 0), func(r *domain.HealthRecord) { r.BloodPressureSystolic = 190 })
	add(thisMonth.AddDate(0, -7, 0), func(*domain.HealthRecord) {})

	s, err := e.analytics.Summary(ctx)
	require.NoError(t, err)

	require.Len(t, s.RecordsPerMonth, 6)
	assert.Equal(t, thisMonth.Format("Jan 2006"), s.RecordsPerMonth[5].Month)
	assert.Equal(t, thisMonth.AddDate(0, -5, 0).Format("Jan 2006"), s.RecordsPerMonth[0].Month)
	assert.Equal(t, 2, s.RecordsPerMonth[5].Count)
	assert.Equal(t, 1, s.RecordsPerMonth[3].Count)
	assert.Equal(t, 1, s.RegistrationsPerMonth[5].Count)

	assert.Equal(t, []RiskCount{
		{Name: domain.RiskNormal, Value: 2},
		{Name: domain.RiskMild, Value: 1},
		{Name: domain.RiskModerate, Value: 0},
		{Name: domain.RiskSevere, Value: 1},
	}, s.RiskDistribution)

	d, err := e.analytics.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.UserCount)
	assert.Equal(t, 1, d.ActiveUsers)
	assert.Equal(t, 4, d.HealthRecordsCount)
	assert.Len(t, d.RecentRecords, 4)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	m.objects[opts.Key] = buf.Bytes()
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (m *memStore) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memStore) DeletePrefix(_ context.Context, _, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *memStore) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example/" + key + "?sig", nil
}

func TestExportService_ArchiveListPurge(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	logger, _ := test.NewNullLogger()
	svc := NewExportService(store, ArchiveOptions{Bucket: "b", KeyPrefix: "exports"}, logger)
	ctx := context.Background()

	u, err := domain.NewUser(domain.UserParams{ID: 7, Email: "a@example.com", Role: domain.RoleUser, Active: true})
	require.NoError(t, err)

	rec := sampleRecord()
	rec.ID, rec.UserID, rec.Symptoms = 1, 7, "cough"
	archive, err := svc.Archive(ctx, u, []domain.HealthRecord{rec})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archive.Key, "exports/7/"))
	assert.Equal(t, "s3://b/"+archive.Key, archive.Location)
	assert.Contains(t, archive.URL, archive.Key)
	assert.Equal(t, 1, archive.RecordCount)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(store.objects[archive.Key], &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "cough", docs[0]["symptoms"])
	assert.Equal(t, float64(72), docs[0]["heart_rate"])

	objects, err := svc.ListArchives(ctx, u)
	require.NoError(t, err)
	assert.Len(t, objects, 1)

	require.NoError(t, svc.Purge(ctx, 7))
	assert.Empty(t, store.objects)
}

func TestExportService_NotConfigured(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := NewExportService(nil, ArchiveOptions{}, logger)
	u, err := domain.NewUser(domain.UserParams{ID: 1, Email: "a@example.com", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = svc.Archive(context.Background(), u, nil)
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
	assert.NoError(t, svc.Purge(context.Background(), 1))
}
