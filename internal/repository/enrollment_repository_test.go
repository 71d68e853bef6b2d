package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
)

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("school-1", "student-1", "group-1", "2026").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "school-1", "student-1", "group-1", "2026")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Temporary withdrawals still hold a seat, so the count filters on both
// statuses.
func TestEnrollmentRepositoryOccupiedSeats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WithArgs("school-1", "group-1", "2026", models.EnrollmentStatusEnrolled, models.EnrollmentStatusTempWithdrawn).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(28))

	count, err := repo.OccupiedSeats(context.Background(), "school-1", "group-1", "2026")
	require.NoError(t, err)
	require.Equal(t, 28, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryGroupCapacityNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM school_groups")).
		WithArgs("group-x", "school-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GroupCapacity(context.Background(), "school-1", "group-x")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Enrollment{ID: "missing", SchoolID: "school-1"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments")).
		WithArgs("school-1", "2026", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1").AddRow("e2"))

	ids, err := repo.ListActiveIDs(context.Background(), "school-1", "2026")
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
