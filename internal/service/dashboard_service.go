package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

const dashboardOverviewCacheKey = "dash:overview"

type statsProvider interface {
	CountActiveStudents(ctx context.Context) (int, error)
	CountActiveCourses(ctx context.Context) (int, error)
	CountEnrollments(ctx context.Context) (int, error)
	StudentsByGradeLevel(ctx context.Context) ([]models.GradeLevelCount, error)
	CoursesByType(ctx context.Context) ([]models.CourseTypeCount, error)
	EnrollmentsByStatus(ctx context.Context) ([]models.EnrollmentStatusCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes aggregate views over the data the engine reads.
type DashboardService struct {
	stats   statsProvider
	metrics *MetricsService
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Stats   statsProvider
	Metrics *MetricsService
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		stats:   params.Stats,
		metrics: params.Metrics,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Overview returns counts over students, courses and enrollments. The bool
// reports whether the payload came from cache.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardOverview, bool, error) {
	if overview, hit := s.tryOverviewCache(ctx); hit {
		return overview, true, nil
	}

	overview, err := s.composeOverview(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, dashboardOverviewCacheKey, overview, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return overview, false, nil
}

// System returns the live instrumentation snapshot. Never cached; staleness
// here would defeat the point.
func (s *DashboardService) System() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func (s *DashboardService) tryOverviewCache(ctx context.Context) (*models.DashboardOverview, bool) {
	var cached models.DashboardOverview
	hit, err := s.cache.Get(ctx, dashboardOverviewCacheKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) composeOverview(ctx context.Context) (*models.DashboardOverview, error) {
	students, err := s.stats.CountActiveStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	courses, err := s.stats.CountActiveCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	enrollments, err := s.stats.CountEnrollments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	byGradeLevel, err := s.stats.StudentsByGradeLevel(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group students")
	}
	byType, err := s.stats.CoursesByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group courses")
	}
	byStatus, err := s.stats.EnrollmentsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group enrollments")
	}

	return &models.DashboardOverview{
		TotalStudents:        students,
		TotalCourses:         courses,
		TotalEnrollments:     enrollments,
		StudentsByGradeLevel: byGradeLevel,
		CoursesByType:        byType,
		EnrollmentsByStatus:  byStatus,
		GeneratedAt:          s.now().UTC(),
	}, nil
}
