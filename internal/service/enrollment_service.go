package service

import (
	"context"
	"database/sql"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/events"
	"github.com/escolaris/academia-api/internal/models"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Enrollment, error)
	Exists(ctx context.Context, schoolID, studentID, groupID, cycleID string) (bool, error)
	OccupiedSeats(ctx context.Context, schoolID, groupID, cycleID string) (int, error)
	GroupCapacity(ctx context.Context, schoolID, groupID string) (int, error)
	StudentBelongs(ctx context.Context, schoolID, studentID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	List(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type cycleFinalizer interface {
	ComputeFinal(ctx context.Context, scope models.Scope, enrollment *models.Enrollment) error
}

// EnrollRequest is the payload to create an enrollment.
type EnrollRequest struct {
	StudentID          string   `json:"student_id" validate:"required"`
	GroupID            string   `json:"group_id" validate:"required"`
	CycleID            string   `json:"cycle_id" validate:"required"`
	HasScholarship     bool     `json:"has_scholarship"`
	ScholarshipPercent *float64 `json:"scholarship_percent" validate:"omitempty,gte=0,lte=100"`
}

// WithdrawRequest is the payload to withdraw an enrollment.
type WithdrawRequest struct {
	Kind   models.WithdrawalKind `json:"kind" validate:"required"`
	Reason string                `json:"reason" validate:"required"`
}

// TransferRequest is the payload to move an enrollment to another group.
type TransferRequest struct {
	NewGroupID string `json:"new_group_id" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// AttendanceStatsRequest carries folded attendance counters.
type AttendanceStatsRequest struct {
	TotalDays    int `json:"total_days" validate:"gte=0"`
	AttendedDays int `json:"attended_days" validate:"gte=0"`
	AbsentDays   int `json:"absent_days" validate:"gte=0"`
	LateDays     int `json:"late_days" validate:"gte=0"`
}

// EnrollmentService drives the enrollment state machine.
type EnrollmentService struct {
	repo      enrollmentRepository
	finalizer cycleFinalizer
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentRepository, finalizer cycleFinalizer, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger, clock Clock) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if publisher == nil {
		publisher = events.Nop()
	}
	return &EnrollmentService{repo: repo, finalizer: finalizer, publisher: publisher, validator: validate, logger: logger, clock: clock}
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, scope models.Scope, id string) (*models.Enrollment, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	enrollment, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments with pagination.
func (s *EnrollmentService) List(ctx context.Context, scope models.Scope, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if !scope.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	enrollments, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Enroll creates a new enrollment after the uniqueness and capacity checks.
func (s *EnrollmentService) Enroll(ctx context.Context, scope models.Scope, req EnrollRequest) (*models.Enrollment, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	belongs, err := s.repo.StudentBelongs(ctx, scope.SchoolID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify student")
	}
	if !belongs {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student does not belong to this school")
	}

	capacity, err := s.repo.GroupCapacity(ctx, scope.SchoolID, req.GroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "group does not belong to this school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	exists, err := s.repo.Exists(ctx, scope.SchoolID, req.StudentID, req.GroupID, req.CycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment,
			"student already enrolled in this group and cycle")
	}

	occupied, err := s.repo.OccupiedSeats(ctx, scope.SchoolID, req.GroupID, req.CycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seats")
	}
	if occupied >= capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "group has no free seats")
	}

	enrollment := &models.Enrollment{
		SchoolID:           scope.SchoolID,
		StudentID:          req.StudentID,
		GroupID:            req.GroupID,
		CycleID:            req.CycleID,
		Status:             models.EnrollmentStatusEnrolled,
		AdmittedAt:         s.clock.Now(),
		HasScholarship:     req.HasScholarship,
		ScholarshipPercent: req.ScholarshipPercent,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment created",
		zap.String("school_id", scope.SchoolID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID))
	return enrollment, nil
}

// Withdraw moves an enrolled student out, temporarily or permanently.
func (s *EnrollmentService) Withdraw(ctx context.Context, scope models.Scope, id string, req WithdrawRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown withdrawal kind")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrReasonRequired, "withdrawal reason is required")
	}
	enrollment, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrState, "only enrolled students can withdraw")
	}

	now := s.clock.Now()
	reason := strings.TrimSpace(req.Reason)
	enrollment.WithdrawnAt = &now
	enrollment.WithdrawalReason = &reason
	enrollment.WithdrawnBy = &scope.ActorID
	if req.Kind == models.WithdrawalPermanent {
		enrollment.Status = models.EnrollmentStatusPermWithdrawn
	} else {
		enrollment.Status = models.EnrollmentStatusTempWithdrawn
	}
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return enrollment, nil
}

// Reactivate reverses a temporary withdrawal.
func (s *EnrollmentService) Reactivate(ctx context.Context, scope models.Scope, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusTempWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrState, "only temporary withdrawals can be reactivated")
	}
	enrollment.Status = models.EnrollmentStatusEnrolled
	enrollment.WithdrawnAt = nil
	enrollment.WithdrawalReason = nil
	enrollment.WithdrawnBy = nil
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
	}
	return enrollment, nil
}

// TransferGroup moves the enrollment to another group within the same cycle.
func (s *EnrollmentService) TransferGroup(ctx context.Context, scope models.Scope, id string, req TransferRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	enrollment, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrState, "only enrolled students can transfer")
	}
	if req.NewGroupID == enrollment.GroupID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "already in target group")
	}

	capacity, err := s.repo.GroupCapacity(ctx, scope.SchoolID, req.NewGroupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "target group does not belong to this school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target group")
	}
	occupied, err := s.repo.OccupiedSeats(ctx, scope.SchoolID, req.NewGroupID, enrollment.CycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seats")
	}
	if occupied >= capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "target group has no free seats")
	}

	now := s.clock.Now()
	previous := enrollment.GroupID
	reason := strings.TrimSpace(req.Reason)
	enrollment.PreviousGroupID = &previous
	enrollment.GroupID = req.NewGroupID
	enrollment.TransferredAt = &now
	enrollment.TransferReason = &reason
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer enrollment")
	}
	return enrollment, nil
}

// FinalizeCycle computes the final outcome and closes the enrollment. The
// transition is irreversible.
func (s *EnrollmentService) FinalizeCycle(ctx context.Context, scope models.Scope, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrState, "only enrolled students can finalize a cycle")
	}
	if err := s.finalizer.ComputeFinal(ctx, scope, enrollment); err != nil {
		return nil, err
	}
	enrollment.Status = models.EnrollmentStatusFinished
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize enrollment")
	}

	s.publisher.Publish(ctx, models.CycleFinalizedEvent{
		SchoolID:     scope.SchoolID,
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		CycleID:      enrollment.CycleID,
		FinalAverage: derefFloat(enrollment.FinalAverage),
		Passed:       derefBool(enrollment.Passed),
		OccurredAt:   s.clock.Now(),
	})
	return enrollment, nil
}

// RecordAttendanceStats stores folded attendance counters on the enrollment.
// Recomputing from the same counters is a no-op.
func (s *EnrollmentService) RecordAttendanceStats(ctx context.Context, scope models.Scope, id string, req AttendanceStatsRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if req.AttendedDays+req.AbsentDays+req.LateDays > req.TotalDays {
		return nil, appErrors.Clone(appErrors.ErrInvalidAttendance,
			"attended, absent and late days exceed total class days")
	}
	enrollment, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	enrollment.TotalDays = req.TotalDays
	enrollment.AttendedDays = req.AttendedDays
	enrollment.AbsentDays = req.AbsentDays
	enrollment.LateDays = req.LateDays
	enrollment.AttendancePercent = attendancePercent(req.AttendedDays, req.TotalDays)

	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance stats")
	}
	return enrollment, nil
}

// attendancePercent computes attended/total*100 rounded to two decimals.
func attendancePercent(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*100*100) / 100
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}
