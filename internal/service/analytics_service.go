package service

import (
	"context"
	"time"

	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

const (
	summaryMonths       = 6
	dashboardRecentSize = 10
)

type Dashboard struct {
	UserCount          int                   `json:"user_count"`
	ActiveUsers        int                   `json:"active_users"`
	HealthRecordsCount int                   `json:"health_records_count"`
	RecentRecords      []domain.HealthRecord `json:"-"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type RiskCount struct {
	Name  domain.RiskLevel `json:"name"`
	Value int              `json:"value"`
}

type Summary struct {
	RecordsPerMonth       []MonthCount `json:"recordsPerMonth"`
	RegistrationsPerMonth []MonthCount `json:"registrationsPerMonth"`
	RiskDistribution      []RiskCount  `json:"riskDistribution"`
}

// AnalyticsService aggregates data for the admin views.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (Dashboard, error)
	Summary(ctx context.Context) (Summary, error)
}

type analyticsService struct {
	users   repository.UserRepository
	records repository.HealthRecordRepository
	now     func() time.Time
}

func NewAnalyticsService(users repository.UserRepository, records repository.HealthRecordRepository) AnalyticsService {
	return &analyticsService{users: users, records: records, now: time.Now}
}

func (s *analyticsService) Dashboard(ctx context.Context) (Dashboard, error) {
	stats, err := s.users.Stats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	count, err := s.records.Count(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := s.records.List(ctx, repository.RecordFilter{Page: repository.Page{Limit: dashboardRecentSize}})
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		UserCount:          stats.Total,
		ActiveUsers:        stats.Active,
		HealthRecordsCount: count,
		RecentRecords:      recent,
	}, nil
}

// Summary counts records and registrations for the last six calendar months,
// oldest first, and classifies every record into a risk bucket.
func (s *analyticsService) Summary(ctx context.Context) (Summary, error) {
	var out Summary

	now := s.now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := summaryMonths - 1; i >= 0; i-- {
		from := current.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0)
		label := from.Format("Jan 2006")

		records, err := s.records.CountCreatedBetween(ctx, from, to)
		if err != nil {
			return Summary{}, err
		}
		users, err := s.users.CountCreatedBetween(ctx, from, to)
		if err != nil {
			return Summary{}, err
		}
		out.RecordsPerMonth = append(out.RecordsPerMonth, MonthCount{Month: label, Count: records})
		out.RegistrationsPerMonth = append(out.RegistrationsPerMonth, MonthCount{Month: label, Count: users})
	}

	all, err := s.records.List(ctx, repository.RecordFilter{Page: repository.Page{Limit: repository.Unlimited}})
	if err != nil {
		return Summary{}, err
	}
	counts := make(map[domain.RiskLevel]int, len(domain.RiskLevels))
	for _, r := range all {
		counts[domain.ClassifyRisk(r)]++
	}
	for _, level := range domain.RiskLevels {
		out.RiskDistribution = append(out.RiskDistribution, RiskCount{Name: level, Value: counts[level]})
	}
	return out, nil
}
