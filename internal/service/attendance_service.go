package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/models"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type attendanceRepository interface {
	ListByEnrollment(ctx context.Context, schoolID, enrollmentID string, until time.Time) ([]models.AttendanceRecord, error)
}

type attendanceStatsWriter interface {
	RecordAttendanceStats(ctx context.Context, scope models.Scope, id string, req AttendanceStatsRequest) (*models.Enrollment, error)
}

// AttendanceService folds daily attendance records into enrollment counters.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments attendanceStatsWriter
	logger      *zap.Logger
	clock       Clock
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepository, enrollments attendanceStatsWriter, logger *zap.Logger, clock Clock) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, logger: logger, clock: clock}
}

// Summarize folds the records into disjoint counters. Excused days count as
// attended; late and absent days each have their own counter, so the counters
// always satisfy attended+absent+late <= total.
func Summarize(records []models.AttendanceRecord) models.AttendanceSummary {
	var summary models.AttendanceSummary
	for _, record := range records {
		summary.TotalDays++
		switch record.Status {
		case models.AttendanceStatusPresent, models.AttendanceStatusExcused:
			summary.AttendedDays++
		case models.AttendanceStatusLate:
			summary.LateDays++
		case models.AttendanceStatusAbsent:
			summary.AbsentDays++
		}
	}
	summary.Percent = attendancePercent(summary.AttendedDays, summary.TotalDays)
	return summary
}

// Sync recomputes the counters for one enrollment from its records up to now
// and stores them. Running it twice over the same records changes nothing.
func (s *AttendanceService) Sync(ctx context.Context, scope models.Scope, enrollmentID string) (models.AttendanceSummary, error) {
	if !scope.Valid() {
		return models.AttendanceSummary{}, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	records, err := s.repo.ListByEnrollment(ctx, scope.SchoolID, enrollmentID, s.clock.Now())
	if err != nil {
		return models.AttendanceSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}
	summary := Summarize(records)
	if _, err := s.enrollments.RecordAttendanceStats(ctx, scope, enrollmentID, AttendanceStatsRequest{
		TotalDays:    summary.TotalDays,
		AttendedDays: summary.AttendedDays,
		AbsentDays:   summary.AbsentDays,
		LateDays:     summary.LateDays,
	}); err != nil {
		return models.AttendanceSummary{}, err
	}
	s.logger.Debug("attendance synced",
		zap.String("enrollment_id", enrollmentID),
		zap.Int("total_days", summary.TotalDays),
		zap.Float64("percent", summary.Percent))
	return summary, nil
}
