package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type mockDashboardRepo struct {
	stats      *models.DashboardStats
	alerts     []models.DashboardAlert
	results    []models.SearchResult
	statsCalls int
	windows    []int
}

func (m *mockDashboardRepo) Stats(ctx context.Context, today time.Time) (*models.DashboardStats, error) {
	m.statsCalls++
	return m.stats, nil
}

func (m *mockDashboardRepo) Alerts(ctx context.Context, today time.Time, windowDays int) ([]models.DashboardAlert, error) {
	m.windows = append(m.windows, windowDays)
	return m.alerts, nil
}

func (m *mockDashboardRepo) Search(ctx context.Context, term string, limit int) ([]models.SearchResult, error) {
	return m.results, nil
}

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func TestDashboardServiceStatsCaching(t *testing.T) {
	repo := &mockDashboardRepo{stats: &models.DashboardStats{
		Representatives: 3,
		Loans:           models.LoanCounters{Total: 10, Active: 4, Overdue: 1},
	}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(repo, cacheSvc, time.Minute, zap.NewNop())

	ctx := context.Background()
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statsCalls)
	assert.Equal(t, 4, stats.Loans.Active)

	cached, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statsCalls)
	assert.Equal(t, stats.Loans, cached.Loans)
}

func TestDashboardServiceStatsWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{stats: &models.DashboardStats{}}
	svc := NewDashboardService(repo, nil, time.Minute, zap.NewNop())

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)
	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.statsCalls)
}

func TestDashboardServiceAlertsDefaultWindow(t *testing.T) {
	repo := &mockDashboardRepo{alerts: []models.DashboardAlert{{LoanID: "loan-1", Overdue: true}}}
	svc := NewDashboardService(repo, nil, time.Minute, zap.NewNop())

	alerts, err := svc.Alerts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, []int{defaultAlertWindow}, repo.windows)
}

func TestDashboardServiceSearchRejectsShortTerm(t *testing.T) {
	svc := NewDashboardService(&mockDashboardRepo{}, nil, time.Minute, zap.NewNop())

	_, err := svc.Search(context.Background(), " a ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
