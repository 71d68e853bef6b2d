package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	students    map[string]bool
	capacities  map[string]int
	occupied    map[string]int
	existing    map[string]bool
	updated     []models.Enrollment
}

func enrollKey(studentID, groupID, cycleID string) string {
	return studentID + "/" + groupID + "/" + cycleID
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, schoolID, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok && e.SchoolID == schoolID {
		copied := e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, schoolID, studentID, groupID, cycleID string) (bool, error) {
	return m.existing[enrollKey(studentID, groupID, cycleID)], nil
}

func (m *mockEnrollmentRepo) OccupiedSeats(ctx context.Context, schoolID, groupID, cycleID string) (int, error) {
	return m.occupied[groupID], nil
}

func (m *mockEnrollmentRepo) GroupCapacity(ctx context.Context, schoolID, groupID string) (int, error) {
	capacity, ok := m.capacities[groupID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return capacity, nil
}

func (m *mockEnrollmentRepo) StudentBelongs(ctx context.Context, schoolID, studentID string) (bool, error) {
	return m.students[studentID], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "generated"
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.enrollments[enrollment.ID] = *enrollment
	m.updated = append(m.updated, *enrollment)
	return nil
}

func (m *mockEnrollmentRepo) List(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.SchoolID == schoolID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

type mockFinalizer struct {
	final  float64
	passed bool
	err    error
	called int
}

func (m *mockFinalizer) ComputeFinal(ctx context.Context, scope models.Scope, enrollment *models.Enrollment) error {
	m.called++
	if m.err != nil {
		return m.err
	}
	final := m.final
	passed := m.passed
	enrollment.FinalAverage = &final
	enrollment.Passed = &passed
	return nil
}

type captureBus struct {
	events []models.Event
}

func (b *captureBus) Publish(ctx context.Context, event models.Event) {
	b.events = append(b.events, event)
}

func testScope() models.Scope {
	return models.Scope{SchoolID: "school-1", ActorID: "actor-1"}
}

func newTestEnrollmentService(repo *mockEnrollmentRepo, finalizer *mockFinalizer, bus *captureBus) *EnrollmentService {
	if finalizer == nil {
		finalizer = &mockFinalizer{}
	}
	if bus != nil {
		return NewEnrollmentService(repo, finalizer, bus, nil, nil, fixedClock{testNow})
	}
	return NewEnrollmentService(repo, finalizer, nil, nil, nil, fixedClock{testNow})
}

func TestEnrollCreatesEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{
		students:   map[string]bool{"student-1": true},
		capacities: map[string]int{"group-1": 30},
		occupied:   map[string]int{"group-1": 10},
		existing:   map[string]bool{},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), testScope(), EnrollRequest{
		StudentID: "student-1",
		GroupID:   "group-1",
		CycleID:   "cycle-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.Equal(t, testNow, enrollment.AdmittedAt)
	assert.Equal(t, "school-1", enrollment.SchoolID)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{
		students:   map[string]bool{"student-1": true},
		capacities: map[string]int{"group-1": 30},
		occupied:   map[string]int{"group-1": 10},
		existing:   map[string]bool{enrollKey("student-1", "group-1", "cycle-1"): true},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Enroll(context.Background(), testScope(), EnrollRequest{
		StudentID: "student-1",
		GroupID:   "group-1",
		CycleID:   "cycle-1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateEnrollment))
}

func TestEnrollRejectsFullGroup(t *testing.T) {
	repo := &mockEnrollmentRepo{
		students:   map[string]bool{"student-1": true},
		capacities: map[string]int{"group-1": 30},
		occupied:   map[string]int{"group-1": 30},
		existing:   map[string]bool{},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Enroll(context.Background(), testScope(), EnrollRequest{
		StudentID: "student-1",
		GroupID:   "group-1",
		CycleID:   "cycle-1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
}

func TestEnrollRejectsForeignStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{
		students:   map[string]bool{},
		capacities: map[string]int{"group-1": 30},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Enroll(context.Background(), testScope(), EnrollRequest{
		StudentID: "outsider",
		GroupID:   "group-1",
		CycleID:   "cycle-1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWithdrawRequiresEnrolledStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusFinished},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Withdraw(context.Background(), testScope(), "e1", WithdrawRequest{
		Kind:   models.WithdrawalTemporary,
		Reason: "family move",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrState))
}

func TestWithdrawRequiresReason(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Withdraw(context.Background(), testScope(), "e1", WithdrawRequest{
		Kind:   models.WithdrawalTemporary,
		Reason: "   ",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrReasonRequired))
}

func TestWithdrawThenReactivateClearsFields(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	withdrawn, err := svc.Withdraw(context.Background(), testScope(), "e1", WithdrawRequest{
		Kind:   models.WithdrawalTemporary,
		Reason: "medical leave",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusTempWithdrawn, withdrawn.Status)
	require.NotNil(t, withdrawn.WithdrawalReason)
	assert.Equal(t, "medical leave", *withdrawn.WithdrawalReason)
	require.NotNil(t, withdrawn.WithdrawnBy)
	assert.Equal(t, "actor-1", *withdrawn.WithdrawnBy)

	reactivated, err := svc.Reactivate(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, reactivated.Status)
	assert.Nil(t, reactivated.WithdrawnAt)
	assert.Nil(t, reactivated.WithdrawalReason)
	assert.Nil(t, reactivated.WithdrawnBy)
}

func TestReactivateRejectsPermanentWithdrawal(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusPermWithdrawn},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.Reactivate(context.Background(), testScope(), "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrState))
}

func TestTransferGroupRecordsPreviousGroup(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", SchoolID: "school-1", GroupID: "group-1", CycleID: "cycle-1", Status: models.EnrollmentStatusEnrolled},
		},
		capacities: map[string]int{"group-2": 25},
		occupied:   map[string]int{"group-2": 24},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	transferred, err := svc.TransferGroup(context.Background(), testScope(), "e1", TransferRequest{
		NewGroupID: "group-2",
		Reason:     "schedule conflict",
	})
	require.NoError(t, err)
	assert.Equal(t, "group-2", transferred.GroupID)
	require.NotNil(t, transferred.PreviousGroupID)
	assert.Equal(t, "group-1", *transferred.PreviousGroupID)
	require.NotNil(t, transferred.TransferReason)
	assert.Equal(t, "schedule conflict", *transferred.TransferReason)
	require.NotNil(t, transferred.TransferredAt)
	assert.Equal(t, testNow, *transferred.TransferredAt)
}

func TestTransferGroupRejectsFullTarget(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", SchoolID: "school-1", GroupID: "group-1", CycleID: "cycle-1", Status: models.EnrollmentStatusEnrolled},
		},
		capacities: map[string]int{"group-2": 25},
		occupied:   map[string]int{"group-2": 25},
	}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.TransferGroup(context.Background(), testScope(), "e1", TransferRequest{
		NewGroupID: "group-2",
		Reason:     "schedule conflict",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
}

func TestFinalizeCyclePublishesEvent(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", StudentID: "student-1", CycleID: "cycle-1", Status: models.EnrollmentStatusEnrolled},
	}}
	finalizer := &mockFinalizer{final: 8.4, passed: true}
	bus := &captureBus{}
	svc := newTestEnrollmentService(repo, finalizer, bus)

	finished, err := svc.FinalizeCycle(context.Background(), testScope(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFinished, finished.Status)
	assert.Equal(t, 1, finalizer.called)

	require.Len(t, bus.events, 1)
	event, ok := bus.events[0].(models.CycleFinalizedEvent)
	require.True(t, ok)
	assert.Equal(t, "e1", event.EnrollmentID)
	assert.Equal(t, 8.4, event.FinalAverage)
	assert.True(t, event.Passed)
}

func TestRecordAttendanceStatsComputesPercent(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	enrollment, err := svc.RecordAttendanceStats(context.Background(), testScope(), "e1", AttendanceStatsRequest{
		TotalDays:    3,
		AttendedDays: 2,
		AbsentDays:   1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 66.67, enrollment.AttendancePercent, 0.001)

	// Feeding the same counters again yields the same state.
	again, err := svc.RecordAttendanceStats(context.Background(), testScope(), "e1", AttendanceStatsRequest{
		TotalDays:    3,
		AttendedDays: 2,
		AbsentDays:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, enrollment.AttendancePercent, again.AttendancePercent)
	assert.Equal(t, enrollment.AttendedDays, again.AttendedDays)
}

func TestRecordAttendanceStatsRejectsInconsistentCounters(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", SchoolID: "school-1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newTestEnrollmentService(repo, nil, nil)

	_, err := svc.RecordAttendanceStats(context.Background(), testScope(), "e1", AttendanceStatsRequest{
		TotalDays:    10,
		AttendedDays: 8,
		AbsentDays:   2,
		LateDays:     1,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidAttendance))
}
