//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

func TestPostgres_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("medtrack"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))

	users := NewUserRepository(db)
	records := NewHealthRecordRepository(db)

	u, err := domain.NewUser(domain.UserParams{Email: "it@example.com", Name: "It", PasswordHash: "h", Role: domain.RoleUser, Active: true})
	require.NoError(t, err)
	created, err := users.Create(ctx, u)
	require.NoError(t, err)

	_, err = users.Create(ctx, u)
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	rec := &domain.HealthRecord{UserID: created.ID(), Height: 170, Weight: 65, HeartRate: 70, BloodPressureSystolic: 118, BloodPressureDiastolic: 76}
	require.NoError(t, records.Create(ctx, rec))

	all, err := records.List(ctx, repository.RecordFilter{Page: repository.Page{Limit: repository.Unlimited}})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, users.Delete(ctx, created.ID()))
	n, err := records.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
