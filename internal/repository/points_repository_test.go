package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
)

func pointsRowColumns() []string {
	return []string{
		"id", "school_id", "student_id", "cycle_id",
		"academic_points", "behavior_points", "sports_points", "culture_points", "social_points",
		"attendance_points", "extra_points", "total_points",
		"level", "current_xp", "next_level_xp", "level_title", "level_color",
		"attendance_streak", "best_attendance_streak", "conduct_streak", "best_conduct_streak",
		"homework_streak", "best_homework_streak",
		"group_rank", "grade_rank", "school_rank", "rank_change", "ranking_visible",
		"deleted_at", "created_at", "updated_at",
	}
}

func pointsRow(total int) *sqlmock.Rows {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(pointsRowColumns()).AddRow(
		"p1", "school-1", "student-1", "cycle-1",
		total, 0, 0, 0, 0,
		0, 0, total,
		1, 50, 100, "Beginner", "#9e9e9e",
		0, 0, 0, 0,
		0, 0,
		nil, nil, nil, 0, true,
		nil, now, now,
	)
}

// The ledger row is read back under a row lock and the new totals come from
// that fresh copy, not from the caller's earlier read.
func TestPointsRepositoryAppendAward(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPointsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("p1", "school-1").
		WillReturnRows(pointsRow(100))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_points SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	history := &models.PointsHistory{SchoolID: "school-1", PointsID: "p1", Category: models.PointsAcademic, SourceType: "grade_capture", SourceID: "g1"}
	points, err := repo.AppendAward(context.Background(), "school-1", "p1", history, func(fresh *models.StudentPoints) error {
		fresh.AcademicPoints += 10
		fresh.TotalPoints += 10
		history.Amount = 10
		history.RunningTotal = fresh.TotalPoints
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, history.ID)
	require.Equal(t, 110, points.TotalPoints)
	require.Equal(t, 110, history.RunningTotal)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A replayed source event hits the unique constraint, inserts nothing and
// must leave the ledger untouched.
func TestPointsRepositoryAppendAwardDuplicateSource(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPointsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("p1", "school-1").
		WillReturnRows(pointsRow(50))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	history := &models.PointsHistory{SchoolID: "school-1", PointsID: "p1", SourceType: "grade_capture", SourceID: "g1"}
	_, err := repo.AppendAward(context.Background(), "school-1", "p1", history, func(fresh *models.StudentPoints) error {
		return nil
	})
	require.True(t, errors.Is(err, ErrDuplicateSource))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPointsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_points SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.StudentPoints{ID: "missing", SchoolID: "school-1"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRepositoryUpdateRanksOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPointsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_points SET group_rank")).
		WithArgs("p1", "school-1", 1, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_points SET group_rank")).
		WithArgs("p2", "school-1", 2, -1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assignments := []models.RankAssignment{
		{PointsID: "p1", Rank: 1, RankChange: 2},
		{PointsID: "p2", Rank: 2, RankChange: -1},
	}
	require.NoError(t, repo.UpdateRanks(context.Background(), "school-1", models.RankScopeGroup, assignments))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRepositoryUpdateRanksRejectsUnknownScope(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPointsRepository(db)

	err := repo.UpdateRanks(context.Background(), "school-1", models.RankScope("district"), []models.RankAssignment{{PointsID: "p1", Rank: 1}})
	require.Error(t, err)
}
