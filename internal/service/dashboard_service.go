package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

const (
	dashboardStatsKey  = "dashboard:stats"
	defaultAlertWindow = 7
	maxSearchResults   = 10
)

type dashboardRepository interface {
	Stats(ctx context.Context, today time.Time) (*models.DashboardStats, error)
	Alerts(ctx context.Context, today time.Time, windowDays int) ([]models.DashboardAlert, error)
	Search(ctx context.Context, term string, limit int) ([]models.SearchResult, error)
}

// DashboardService aggregates counters and alerts for the admin home
// screen. Stats are cached; mutations to loans and inventory
// invalidate the dashboard key space.
type DashboardService struct {
	repo     dashboardRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns entity counters, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached models.DashboardStats
		if hit, err := s.cache.Get(ctx, dashboardStatsKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dashboard stats")
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, dashboardStatsKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Alerts lists overdue loans and loans ending within the window. Not
// cached: the figures drive follow-up calls and must be current.
func (s *DashboardService) Alerts(ctx context.Context, windowDays int) ([]models.DashboardAlert, error) {
	if windowDays <= 0 {
		windowDays = defaultAlertWindow
	}
	alerts, err := s.repo.Alerts(ctx, s.now(), windowDays)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alerts")
	}
	return alerts, nil
}

// Search runs a cross-entity lookup over students, representatives,
// instruments and loans.
func (s *DashboardService) Search(ctx context.Context, term string) ([]models.SearchResult, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search term needs at least 2 characters")
	}
	results, err := s.repo.Search(ctx, term, maxSearchResults)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search")
	}
	return results, nil
}
