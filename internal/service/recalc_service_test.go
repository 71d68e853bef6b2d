package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/pkg/config"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type mockRecalcGrades struct {
	byEnrollment map[string][]models.Grade
}

func (m *mockRecalcGrades) ListByEnrollment(ctx context.Context, schoolID, enrollmentID string) ([]models.Grade, error) {
	return m.byEnrollment[enrollmentID], nil
}

func newTestRecalcService(enrollments *mockEnrollmentRepo, grades *mockRecalcGrades) *RecalcService {
	return NewRecalcService(enrollments, grades, testGradingConfig(), config.RecalcConfig{}, nil)
}

func (m *mockEnrollmentRepo) ListActiveIDs(ctx context.Context, schoolID, cycleID string) ([]string, error) {
	var ids []string
	for id, e := range m.enrollments {
		if e.SchoolID == schoolID && e.CycleID == cycleID && e.Status == models.EnrollmentStatusEnrolled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func grade(subject string, period int, score, weight float64) models.Grade {
	return models.Grade{SubjectID: subject, Period: period, Score: score, Weight: weight}
}

func TestRecalculateEnrollmentFoldsAverages(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	grades := &mockRecalcGrades{byEnrollment: map[string][]models.Grade{
		"e1": {
			grade("math", 1, 8.0, 50),
			grade("math", 2, 9.0, 50),
			grade("history", 1, 5.0, 50),
			grade("history", 2, 5.5, 50),
		},
	}}
	svc := newTestRecalcService(enrollments, grades)

	enrollment, err := svc.RecalculateEnrollment(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	// Cumulative: (8 + 9 + 5 + 5.5) / 4 with equal weights.
	assert.InDelta(t, 6.88, enrollment.CumulativeAverage, 0.001)
	// Running covers period 2 only.
	assert.InDelta(t, 7.25, enrollment.RunningAverage, 0.001)
	// History averages 5.25, below the passing mark.
	assert.Equal(t, 1, enrollment.FailedSubjects)
}

func TestRecalculateEnrollmentIsIdempotent(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	grades := &mockRecalcGrades{byEnrollment: map[string][]models.Grade{
		"e1": {grade("math", 1, 7.0, 100)},
	}}
	svc := newTestRecalcService(enrollments, grades)

	first, err := svc.RecalculateEnrollment(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	second, err := svc.RecalculateEnrollment(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	assert.Equal(t, first.CumulativeAverage, second.CumulativeAverage)
	assert.Equal(t, first.FailedSubjects, second.FailedSubjects)
}

func TestRecalculateEnrollmentNoGrades(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled, RunningAverage: 9.0},
	}}
	grades := &mockRecalcGrades{}
	svc := newTestRecalcService(enrollments, grades)

	enrollment, err := svc.RecalculateEnrollment(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, enrollment.RunningAverage)
	assert.Equal(t, 0.0, enrollment.CumulativeAverage)
}

func TestComputeFinalDerivesOutcome(t *testing.T) {
	grades := &mockRecalcGrades{byEnrollment: map[string][]models.Grade{
		"e1": {
			grade("math", 1, 8.0, 100),
			grade("history", 1, 7.0, 100),
		},
	}}
	svc := newTestRecalcService(&mockEnrollmentRepo{}, grades)

	enrollment := &models.Enrollment{ID: "e1", SchoolID: "school-1"}
	err := svc.ComputeFinal(context.Background(), testScope(), enrollment)
	require.NoError(t, err)
	require.NotNil(t, enrollment.FinalAverage)
	assert.InDelta(t, 7.5, *enrollment.FinalAverage, 0.001)
	require.NotNil(t, enrollment.Passed)
	assert.True(t, *enrollment.Passed)
}

func TestComputeFinalFailsWithFailedSubject(t *testing.T) {
	grades := &mockRecalcGrades{byEnrollment: map[string][]models.Grade{
		"e1": {
			grade("math", 1, 9.5, 100),
			grade("history", 1, 4.0, 100),
		},
	}}
	svc := newTestRecalcService(&mockEnrollmentRepo{}, grades)

	enrollment := &models.Enrollment{ID: "e1", SchoolID: "school-1"}
	err := svc.ComputeFinal(context.Background(), testScope(), enrollment)
	require.NoError(t, err)
	require.NotNil(t, enrollment.Passed)
	// The overall average clears the bar but the failed subject blocks passing.
	assert.False(t, *enrollment.Passed)
	assert.Equal(t, 1, enrollment.FailedSubjects)
}

func TestComputeFinalRequiresGrades(t *testing.T) {
	svc := newTestRecalcService(&mockEnrollmentRepo{}, &mockRecalcGrades{})

	enrollment := &models.Enrollment{ID: "e1", SchoolID: "school-1"}
	err := svc.ComputeFinal(context.Background(), testScope(), enrollment)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
}

func TestRecalculateCycleReportsPerItem(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", CycleID: "cycle-1", Status: models.EnrollmentStatusEnrolled},
		"e2": {ID: "e2", SchoolID: "school-1", CycleID: "cycle-1", Status: models.EnrollmentStatusEnrolled},
		"e3": {ID: "e3", SchoolID: "school-1", CycleID: "cycle-1", Status: models.EnrollmentStatusFinished},
	}}
	grades := &mockRecalcGrades{byEnrollment: map[string][]models.Grade{
		"e1": {grade("math", 1, 8.0, 100)},
		"e2": {grade("math", 1, 6.5, 100)},
	}}
	svc := newTestRecalcService(enrollments, grades)

	result, err := svc.RecalculateCycle(context.Background(), testScope(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.Results, 2)
	for _, item := range result.Results {
		assert.True(t, item.OK)
	}
}
