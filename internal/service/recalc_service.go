package service

import (
	"context"
	"database/sql"
	"math"

	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/pkg/config"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
	"github.com/escolaris/academia-api/pkg/jobs"
)

type recalcEnrollmentStore interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Enrollment, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	ListActiveIDs(ctx context.Context, schoolID, cycleID string) ([]string, error)
}

type recalcGradeStore interface {
	ListByEnrollment(ctx context.Context, schoolID, enrollmentID string) ([]models.Grade, error)
}

// BatchItemResult reports the outcome of one enrollment in a batch run.
type BatchItemResult struct {
	EnrollmentID string `json:"enrollment_id"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
}

// BatchResult summarizes a cycle-wide recalculation.
type BatchResult struct {
	Total   int               `json:"total"`
	Failed  int               `json:"failed"`
	Results []BatchItemResult `json:"results"`
}

// RecalcService derives enrollment grade aggregates from the grade ledger.
// Aggregates are always recomputed from scratch, never adjusted incrementally.
type RecalcService struct {
	enrollments recalcEnrollmentStore
	grades      recalcGradeStore
	grading     config.GradingConfig
	logger      *zap.Logger

	queue     *jobs.Queue
	onOutcome func(outcome string)
}

// NewRecalcService constructs the service and its background queue.
func NewRecalcService(enrollments recalcEnrollmentStore, grades recalcGradeStore, grading config.GradingConfig, recalcCfg config.RecalcConfig, logger *zap.Logger) *RecalcService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecalcService{
		enrollments: enrollments,
		grades:      grades,
		grading:     grading,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("recalc", s.handleTask, jobs.Config{
		Workers:    recalcCfg.Workers,
		Buffer:     recalcCfg.BufferSize,
		MaxRetries: recalcCfg.MaxRetries,
		Backoff:    recalcCfg.RetryDelay,
		Logger:     logger,
		Observer: func(_ string, err error) {
			if s.onOutcome == nil {
				return
			}
			if err != nil {
				s.onOutcome("error")
				return
			}
			s.onOutcome("ok")
		},
	})
	return s
}

// ObserveOutcomes registers a callback receiving "ok" or "error" once per
// drained task. Register before Start.
func (s *RecalcService) ObserveOutcomes(fn func(outcome string)) {
	s.onOutcome = fn
}

// Start launches the background workers.
func (s *RecalcService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains the background workers.
func (s *RecalcService) Stop() { s.queue.Stop() }

type recalcPayload struct {
	Scope        models.Scope
	EnrollmentID string
}

func (s *RecalcService) handleTask(ctx context.Context, task jobs.Task) error {
	payload, ok := task.Payload.(recalcPayload)
	if !ok {
		s.logger.Error("unexpected recalc payload", zap.String("task_id", task.ID))
		return nil
	}
	_, err := s.RecalculateEnrollment(ctx, payload.Scope, payload.EnrollmentID)
	return err
}

// Enqueue schedules an asynchronous recalculation for one enrollment.
func (s *RecalcService) Enqueue(scope models.Scope, enrollmentID string) error {
	return s.queue.Enqueue(jobs.Task{
		Kind:    "recalc.enrollment",
		Payload: recalcPayload{Scope: scope, EnrollmentID: enrollmentID},
	})
}

// RecalculateEnrollment folds the enrollment's grades into its running and
// cumulative averages and refreshes the failed-subject count.
func (s *RecalcService) RecalculateEnrollment(ctx context.Context, scope models.Scope, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.loadEnrollment(ctx, scope, enrollmentID)
	if err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByEnrollment(ctx, scope.SchoolID, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	running, cumulative, failed := fold(grades, s.grading.MinPassingGrade)
	enrollment.RunningAverage = running
	enrollment.CumulativeAverage = cumulative
	enrollment.FailedSubjects = failed

	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store aggregates")
	}
	return enrollment, nil
}

// ComputeFinal derives the cycle outcome on the enrollment in memory. The
// caller persists the enrollment; an enrollment with no grades cannot close.
func (s *RecalcService) ComputeFinal(ctx context.Context, scope models.Scope, enrollment *models.Enrollment) error {
	if !scope.Valid() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	grades, err := s.grades.ListByEnrollment(ctx, scope.SchoolID, enrollment.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	if len(grades) == 0 {
		return appErrors.Clone(appErrors.ErrConsistency, "cannot finalize an enrollment without grades")
	}

	running, cumulative, failed := fold(grades, s.grading.MinPassingGrade)
	final := cumulative
	passed := final >= s.grading.MinPassingGrade && failed == 0

	enrollment.RunningAverage = running
	enrollment.CumulativeAverage = cumulative
	enrollment.FailedSubjects = failed
	enrollment.FinalAverage = &final
	enrollment.Passed = &passed
	return nil
}

// RecalculateCycle recomputes every active enrollment of a cycle in a stable
// order. One failure never aborts the batch; each item reports its own result.
func (s *RecalcService) RecalculateCycle(ctx context.Context, scope models.Scope, cycleID string) (*BatchResult, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	ids, err := s.enrollments.ListActiveIDs(ctx, scope.SchoolID, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	result := &BatchResult{Total: len(ids), Results: make([]BatchItemResult, 0, len(ids))}
	for _, id := range ids {
		item := BatchItemResult{EnrollmentID: id, OK: true}
		if _, err := s.RecalculateEnrollment(ctx, scope, id); err != nil {
			item.OK = false
			item.Error = err.Error()
			result.Failed++
			s.logger.Warn("recalculation failed",
				zap.String("enrollment_id", id),
				zap.Error(err))
		}
		result.Results = append(result.Results, item)
	}
	s.logger.Info("cycle recalculated",
		zap.String("school_id", scope.SchoolID),
		zap.String("cycle_id", cycleID),
		zap.Int("total", result.Total),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *RecalcService) loadEnrollment(ctx context.Context, scope models.Scope, id string) (*models.Enrollment, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	enrollment, err := s.enrollments.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// fold computes the weighted averages and failed-subject count from a grade
// set. Grades must arrive ordered by subject then period. The running average
// covers the latest period seen; the cumulative average covers everything.
func fold(grades []models.Grade, minPassing float64) (running, cumulative float64, failed int) {
	if len(grades) == 0 {
		return 0, 0, 0
	}

	latestPeriod := 0
	for _, g := range grades {
		if g.Period > latestPeriod {
			latestPeriod = g.Period
		}
	}

	var cumWeighted, cumWeight float64
	var runWeighted, runWeight float64
	subjectSum := map[string]float64{}
	subjectWeight := map[string]float64{}
	for _, g := range grades {
		cumWeighted += g.Score * g.Weight
		cumWeight += g.Weight
		if g.Period == latestPeriod {
			runWeighted += g.Score * g.Weight
			runWeight += g.Weight
		}
		subjectSum[g.SubjectID] += g.Score * g.Weight
		subjectWeight[g.SubjectID] += g.Weight
	}

	if cumWeight > 0 {
		cumulative = round2(cumWeighted / cumWeight)
	}
	if runWeight > 0 {
		running = round2(runWeighted / runWeight)
	}
	for subject, weight := range subjectWeight {
		if weight > 0 && subjectSum[subject]/weight < minPassing {
			failed++
		}
	}
	return running, cumulative, failed
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
