package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/pkg/config"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type mockGradeRepo struct {
	grades   map[string]models.Grade
	existing map[string]bool
	audits   []models.GradeAuditEntry
	locked   []string
}

func gradeKey(studentID, subjectID, groupID string, period int) string {
	return studentID + "/" + subjectID + "/" + groupID + "/" + string(rune('0'+period))
}

func (m *mockGradeRepo) FindByID(ctx context.Context, schoolID, id string) (*models.Grade, error) {
	if g, ok := m.grades[id]; ok && g.SchoolID == schoolID {
		copied := g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) Exists(ctx context.Context, schoolID, studentID, subjectID, groupID string, period int) (bool, error) {
	return m.existing[gradeKey(studentID, subjectID, groupID, period)], nil
}

func (m *mockGradeRepo) Create(ctx context.Context, grade *models.Grade) error {
	if m.grades == nil {
		m.grades = make(map[string]models.Grade)
	}
	if grade.ID == "" {
		grade.ID = "generated"
	}
	m.grades[grade.ID] = *grade
	return nil
}

func (m *mockGradeRepo) ApplyRegrade(ctx context.Context, grade *models.Grade, audit *models.GradeAuditEntry) error {
	stored, ok := m.grades[grade.ID]
	if !ok {
		return sql.ErrNoRows
	}
	// Mirrors the locked re-read: previous values come from the stored row,
	// and the first regrade pins the original score.
	audit.PreviousScore = stored.Score
	audit.PreviousObservations = stored.Observations
	if stored.OriginalScore != nil {
		grade.OriginalScore = stored.OriginalScore
	} else {
		first := stored.Score
		grade.OriginalScore = &first
	}
	m.audits = append(m.audits, *audit)
	m.grades[grade.ID] = *grade
	return nil
}

func (m *mockGradeRepo) Lock(ctx context.Context, schoolID, id, actorID string, at time.Time) error {
	grade := m.grades[id]
	grade.Locked = true
	m.grades[id] = grade
	m.locked = append(m.locked, id)
	return nil
}

func (m *mockGradeRepo) LockByGroupAndPeriod(ctx context.Context, schoolID, groupID string, period int, actorID string, at time.Time) (int, error) {
	count := 0
	for id, g := range m.grades {
		if g.GroupID == groupID && g.Period == period && !g.Locked {
			g.Locked = true
			m.grades[id] = g
			count++
		}
	}
	return count, nil
}

func (m *mockGradeRepo) ListByEnrollment(ctx context.Context, schoolID, enrollmentID string) ([]models.Grade, error) {
	var out []models.Grade
	for _, g := range m.grades {
		if g.EnrollmentID == enrollmentID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGradeRepo) ListAudit(ctx context.Context, schoolID, gradeID string) ([]models.GradeAuditEntry, error) {
	var out []models.GradeAuditEntry
	for _, a := range m.audits {
		if a.GradeID == gradeID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockRecalc struct{ calls []string }

func (m *mockRecalc) RecalculateEnrollment(ctx context.Context, scope models.Scope, enrollmentID string) (*models.Enrollment, error) {
	m.calls = append(m.calls, enrollmentID)
	return &models.Enrollment{ID: enrollmentID}, nil
}

func (m *mockRecalc) Enqueue(scope models.Scope, enrollmentID string) error {
	m.calls = append(m.calls, enrollmentID)
	return nil
}

func testGradingConfig() config.GradingConfig {
	return config.GradingConfig{
		MinPassingGrade: 6.0,
		MaxScore:        10.0,
		LetterScale: []config.LetterCut{
			{MinScore: 9, Letter: "A"},
			{MinScore: 8, Letter: "B"},
			{MinScore: 7, Letter: "C"},
			{MinScore: 6, Letter: "D"},
		},
		FailingLetter: "F",
	}
}

func newTestGradeService(repo *mockGradeRepo, recalc *mockRecalc, bus *captureBus) *GradeService {
	if recalc == nil {
		recalc = &mockRecalc{}
	}
	if bus != nil {
		return NewGradeService(repo, recalc, bus, testGradingConfig(), nil, nil, fixedClock{testNow})
	}
	return NewGradeService(repo, recalc, nil, testGradingConfig(), nil, nil, fixedClock{testNow})
}

func captureRequest() CaptureGradeRequest {
	return CaptureGradeRequest{
		EnrollmentID: "e1",
		StudentID:    "student-1",
		SubjectID:    "math",
		GroupID:      "group-1",
		Period:       1,
		Score:        8.5,
		EvalType:     models.EvaluationPartial,
		Weight:       100,
	}
}

func TestCaptureDerivesPassedAndLetter(t *testing.T) {
	repo := &mockGradeRepo{existing: map[string]bool{}}
	recalc := &mockRecalc{}
	svc := newTestGradeService(repo, recalc, nil)

	grade, err := svc.Capture(context.Background(), testScope(), captureRequest())
	require.NoError(t, err)
	assert.True(t, grade.Passed)
	assert.Equal(t, "B", grade.LetterGrade)
	assert.Equal(t, "actor-1", grade.CreatedBy)
	assert.Equal(t, []string{"e1"}, recalc.calls)
}

// A score below every cut gets the failing letter, never the lowest passing
// one.
func TestCaptureBelowEveryCutGetsFailingLetter(t *testing.T) {
	repo := &mockGradeRepo{existing: map[string]bool{}}
	svc := newTestGradeService(repo, nil, nil)

	req := captureRequest()
	req.Score = 0.0
	grade, err := svc.Capture(context.Background(), testScope(), req)
	require.NoError(t, err)
	assert.False(t, grade.Passed)
	assert.Equal(t, "F", grade.LetterGrade)
}

func TestCaptureRejectsDuplicate(t *testing.T) {
	repo := &mockGradeRepo{existing: map[string]bool{
		gradeKey("student-1", "math", "group-1", 1): true,
	}}
	svc := newTestGradeService(repo, nil, nil)

	_, err := svc.Capture(context.Background(), testScope(), captureRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateGrade))
}

func TestCaptureRejectsScoreAboveScale(t *testing.T) {
	repo := &mockGradeRepo{existing: map[string]bool{}}
	svc := newTestGradeService(repo, nil, nil)

	req := captureRequest()
	req.Score = 10.5
	_, err := svc.Capture(context.Background(), testScope(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRegradeWritesAuditAndKeepsOriginalScore(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"g1": {ID: "g1", SchoolID: "school-1", EnrollmentID: "e1", StudentID: "student-1", Score: 8.5, Passed: true},
	}}
	bus := &captureBus{}
	svc := newTestGradeService(repo, nil, bus)

	grade, err := svc.Regrade(context.Background(), testScope(), "g1", RegradeRequest{
		NewScore: 9.0,
		Reason:   "addition error on question 4",
	})
	require.NoError(t, err)
	assert.Equal(t, 9.0, grade.Score)
	assert.Equal(t, "A", grade.LetterGrade)
	assert.True(t, grade.IsRegrade)
	require.NotNil(t, grade.OriginalScore)
	assert.Equal(t, 8.5, *grade.OriginalScore)

	require.Len(t, repo.audits, 1)
	audit := repo.audits[0]
	assert.Equal(t, 8.5, audit.PreviousScore)
	assert.Equal(t, 9.0, audit.NewScore)
	assert.Equal(t, "addition error on question 4", audit.Reason)
	assert.Equal(t, "actor-1", audit.ActorID)

	require.Len(t, bus.events, 1)
	event, ok := bus.events[0].(models.GradeChangedEvent)
	require.True(t, ok)
	require.NotNil(t, event.PreviousScore)
	assert.Equal(t, 8.5, *event.PreviousScore)
	assert.Equal(t, 9.0, event.NewScore)

	// A second regrade keeps the first captured score as the original.
	again, err := svc.Regrade(context.Background(), testScope(), "g1", RegradeRequest{
		NewScore: 7.0,
		Reason:   "second review",
	})
	require.NoError(t, err)
	require.NotNil(t, again.OriginalScore)
	assert.Equal(t, 8.5, *again.OriginalScore)
	assert.Len(t, repo.audits, 2)
}

func TestGradeOperationsRejectMissingScope(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"g1": {ID: "g1", SchoolID: "school-1", Score: 8.5},
	}}
	svc := newTestGradeService(repo, nil, nil)

	_, err := svc.Regrade(context.Background(), models.Scope{}, "g1", RegradeRequest{
		NewScore: 9.0,
		Reason:   "late appeal",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	assert.Empty(t, repo.audits)

	_, err = svc.Get(context.Background(), models.Scope{SchoolID: "school-1"}, "g1")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ListByEnrollment(context.Background(), models.Scope{ActorID: "actor-1"}, "e1")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Lock(context.Background(), models.Scope{}, "g1")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	assert.Empty(t, repo.locked)

	_, err = svc.History(context.Background(), models.Scope{}, "g1")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestRegradeRequiresReason(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"g1": {ID: "g1", SchoolID: "school-1", Score: 8.5},
	}}
	svc := newTestGradeService(repo, nil, nil)

	_, err := svc.Regrade(context.Background(), testScope(), "g1", RegradeRequest{NewScore: 9.0})
	require.Error(t, err)
	assert.Empty(t, repo.audits)
}

func TestRegradeLockedGradeNeedsOverride(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"g1": {ID: "g1", SchoolID: "school-1", Score: 8.5, Locked: true},
	}}
	svc := newTestGradeService(repo, nil, nil)

	_, err := svc.Regrade(context.Background(), testScope(), "g1", RegradeRequest{
		NewScore: 9.0,
		Reason:   "late appeal",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrGradeLocked))

	grade, err := svc.Regrade(context.Background(), testScope(), "g1", RegradeRequest{
		NewScore: 9.0,
		Reason:   "late appeal",
		Override: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 9.0, grade.Score)
	require.Len(t, repo.audits, 1)
}

func TestLockPeriodCountsAffectedGrades(t *testing.T) {
	repo := &mockGradeRepo{grades: map[string]models.Grade{
		"g1": {ID: "g1", SchoolID: "school-1", GroupID: "group-1", Period: 1},
		"g2": {ID: "g2", SchoolID: "school-1", GroupID: "group-1", Period: 1},
		"g3": {ID: "g3", SchoolID: "school-1", GroupID: "group-1", Period: 2},
	}}
	svc := newTestGradeService(repo, nil, nil)

	locked, err := svc.LockPeriod(context.Background(), testScope(), "group-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, locked)
}
