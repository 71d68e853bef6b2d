package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/events"
	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/pkg/config"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type gradeRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Grade, error)
	Exists(ctx context.Context, schoolID, studentID, subjectID, groupID string, period int) (bool, error)
	Create(ctx context.Context, grade *models.Grade) error
	ApplyRegrade(ctx context.Context, grade *models.Grade, audit *models.GradeAuditEntry) error
	Lock(ctx context.Context, schoolID, id, actorID string, at time.Time) error
	LockByGroupAndPeriod(ctx context.Context, schoolID, groupID string, period int, actorID string, at time.Time) (int, error)
	ListByEnrollment(ctx context.Context, schoolID, enrollmentID string) ([]models.Grade, error)
	ListAudit(ctx context.Context, schoolID, gradeID string) ([]models.GradeAuditEntry, error)
}

type recalculator interface {
	RecalculateEnrollment(ctx context.Context, scope models.Scope, enrollmentID string) (*models.Enrollment, error)
	Enqueue(scope models.Scope, enrollmentID string) error
}

// CaptureGradeRequest is the payload to record a new grade.
type CaptureGradeRequest struct {
	EnrollmentID  string                `json:"enrollment_id" validate:"required"`
	StudentID     string                `json:"student_id" validate:"required"`
	SubjectID     string                `json:"subject_id" validate:"required"`
	GroupID       string                `json:"group_id" validate:"required"`
	Period        int                   `json:"period" validate:"required,gte=1"`
	Score         float64               `json:"score" validate:"gte=0"`
	EvalType      models.EvaluationType `json:"eval_type" validate:"required"`
	Weight        float64               `json:"weight" validate:"gt=0,lte=100"`
	ParentVisible bool                  `json:"parent_visible"`
	Observations  *string               `json:"observations"`
}

// RegradeRequest is the payload to correct an existing grade.
type RegradeRequest struct {
	NewScore     float64 `json:"new_score" validate:"gte=0"`
	Reason       string  `json:"reason" validate:"required"`
	Observations *string `json:"observations"`
	// Override applies the change to a locked grade. Only privileged roles
	// may set it; the handler derives it from the caller's claims.
	Override      bool    `json:"-"`
	CorrelationID *string `json:"-"`
}

// GradeService captures scores and guards the regrade audit path.
type GradeService struct {
	repo      gradeRepository
	recalc    recalculator
	publisher events.Publisher
	grading   config.GradingConfig
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewGradeService constructs the service.
func NewGradeService(repo gradeRepository, recalc recalculator, publisher events.Publisher, grading config.GradingConfig, validate *validator.Validate, logger *zap.Logger, clock Clock) *GradeService {
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
	return &GradeService{repo: repo, recalc: recalc, publisher: publisher, grading: grading, validator: validate, logger: logger, clock: clock}
}

// Get returns one grade.
func (s *GradeService) Get(ctx context.Context, scope models.Scope, id string) (*models.Grade, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	grade, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// ListByEnrollment returns all grades of an enrollment.
func (s *GradeService) ListByEnrollment(ctx context.Context, scope models.Scope, enrollmentID string) ([]models.Grade, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	grades, err := s.repo.ListByEnrollment(ctx, scope.SchoolID, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// History returns the audit trail of a grade, oldest first.
func (s *GradeService) History(ctx context.Context, scope models.Scope, gradeID string) ([]models.GradeAuditEntry, error) {
	if _, err := s.Get(ctx, scope, gradeID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAudit(ctx, scope.SchoolID, gradeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade audit")
	}
	return entries, nil
}

// Capture records a new grade. One grade per student, subject, group and
// period: a second capture is a conflict, not an update.
func (s *GradeService) Capture(ctx context.Context, scope models.Scope, req CaptureGradeRequest) (*models.Grade, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !req.EvalType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation type")
	}
	if req.Score > s.grading.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the grading scale")
	}

	exists, err := s.repo.Exists(ctx, scope.SchoolID, req.StudentID, req.SubjectID, req.GroupID, req.Period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateGrade,
			"a grade already exists for this subject and period; use a regrade to correct it")
	}

	grade := &models.Grade{
		SchoolID:      scope.SchoolID,
		EnrollmentID:  req.EnrollmentID,
		StudentID:     req.StudentID,
		SubjectID:     req.SubjectID,
		GroupID:       req.GroupID,
		Period:        req.Period,
		Score:         req.Score,
		LetterGrade:   s.letterFor(req.Score),
		Passed:        req.Score >= s.grading.MinPassingGrade,
		EvalType:      req.EvalType,
		Weight:        req.Weight,
		ParentVisible: req.ParentVisible,
		Observations:  req.Observations,
		CreatedBy:     scope.ActorID,
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}

	s.publisher.Publish(ctx, models.GradeChangedEvent{
		SchoolID:   scope.SchoolID,
		GradeID:    grade.ID,
		StudentID:  grade.StudentID,
		SubjectID:  grade.SubjectID,
		Period:     grade.Period,
		NewScore:   grade.Score,
		ActorID:    scope.ActorID,
		OccurredAt: s.clock.Now(),
	})
	s.triggerRecalc(ctx, scope, grade.EnrollmentID)
	return grade, nil
}

// Regrade corrects an existing grade. The audit row and the score change
// apply in a single transaction; a regrade with no audit entry cannot happen.
func (s *GradeService) Regrade(ctx context.Context, scope models.Scope, id string, req RegradeRequest) (*models.Grade, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regrade payload")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrReasonRequired, "a regrade reason is required")
	}
	if req.NewScore > s.grading.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the grading scale")
	}

	grade, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if grade.Locked && !req.Override {
		return nil, appErrors.Clone(appErrors.ErrGradeLocked, "grade is locked for the period")
	}

	audit := &models.GradeAuditEntry{
		SchoolID:             scope.SchoolID,
		GradeID:              grade.ID,
		PreviousScore:        grade.Score,
		NewScore:             req.NewScore,
		PreviousObservations: grade.Observations,
		NewObservations:      req.Observations,
		Reason:               strings.TrimSpace(req.Reason),
		ActorID:              scope.ActorID,
		CorrelationID:        req.CorrelationID,
	}

	grade.Score = req.NewScore
	grade.LetterGrade = s.letterFor(req.NewScore)
	grade.Passed = req.NewScore >= s.grading.MinPassingGrade
	grade.IsRegrade = true
	if req.Observations != nil {
		grade.Observations = req.Observations
	}

	// The repository re-reads the row under lock and fills in the audit's
	// previous values from that fresh copy.
	if err := s.repo.ApplyRegrade(ctx, grade, audit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply regrade")
	}
	s.logger.Info("grade corrected",
		zap.String("school_id", scope.SchoolID),
		zap.String("grade_id", grade.ID),
		zap.Float64("previous_score", audit.PreviousScore),
		zap.Float64("new_score", req.NewScore),
		zap.String("actor_id", scope.ActorID))

	s.publisher.Publish(ctx, models.GradeChangedEvent{
		SchoolID:      scope.SchoolID,
		GradeID:       grade.ID,
		StudentID:     grade.StudentID,
		SubjectID:     grade.SubjectID,
		Period:        grade.Period,
		PreviousScore: &audit.PreviousScore,
		NewScore:      grade.Score,
		ActorID:       scope.ActorID,
		OccurredAt:    s.clock.Now(),
	})
	s.triggerRecalc(ctx, scope, grade.EnrollmentID)
	return grade, nil
}

// Lock freezes a single grade.
func (s *GradeService) Lock(ctx context.Context, scope models.Scope, id string) (*models.Grade, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	grade, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if grade.Locked {
		return grade, nil
	}
	now := s.clock.Now()
	if err := s.repo.Lock(ctx, scope.SchoolID, id, scope.ActorID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock grade")
	}
	grade.Locked = true
	grade.LockedAt = &now
	grade.LockedBy = &scope.ActorID
	return grade, nil
}

// LockPeriod freezes every grade of a group for one period and returns how
// many grades were locked.
func (s *GradeService) LockPeriod(ctx context.Context, scope models.Scope, groupID string, period int) (int, error) {
	if !scope.Valid() {
		return 0, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if period < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "period must be positive")
	}
	locked, err := s.repo.LockByGroupAndPeriod(ctx, scope.SchoolID, groupID, period, scope.ActorID, s.clock.Now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock period")
	}
	s.logger.Info("period locked",
		zap.String("school_id", scope.SchoolID),
		zap.String("group_id", groupID),
		zap.Int("period", period),
		zap.Int("grades_locked", locked))
	return locked, nil
}

func (s *GradeService) letterFor(score float64) string {
	for _, cut := range s.grading.LetterScale {
		if score >= cut.MinScore {
			return cut.Letter
		}
	}
	// Below every cut: failing, never the lowest passing letter.
	return s.grading.FailingLetter
}

// triggerRecalc refreshes the enrollment aggregates after a grade change.
// The work is queued for the background workers; when the queue is not
// running the recalculation happens inline instead. A recalculation
// failure does not undo the grade write.
func (s *GradeService) triggerRecalc(ctx context.Context, scope models.Scope, enrollmentID string) {
	if s.recalc == nil {
		return
	}
	if err := s.recalc.Enqueue(scope, enrollmentID); err == nil {
		return
	}
	if _, err := s.recalc.RecalculateEnrollment(ctx, scope, enrollmentID); err != nil {
		s.logger.Warn("post-grade recalculation failed",
			zap.String("enrollment_id", enrollmentID),
			zap.Error(err))
	}
}
