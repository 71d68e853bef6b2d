package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolaris/academia-api/internal/models"
)

// ErrDuplicateSource signals that a point-earning event with the same source
// type+id was already recorded. Callers treat it as an idempotent replay.
var ErrDuplicateSource = errors.New("duplicate point source event")

const pointsColumns = `id, school_id, student_id, cycle_id,
        academic_points, behavior_points, sports_points, culture_points, social_points,
        attendance_points, extra_points, total_points,
        level, current_xp, next_level_xp, level_title, level_color,
        attendance_streak, best_attendance_streak, conduct_streak, best_conduct_streak,
        homework_streak, best_homework_streak,
        group_rank, grade_rank, school_rank, rank_change, ranking_visible,
        deleted_at, created_at, updated_at`

// PointsRepository persists the gamification ledger and its history.
type PointsRepository struct {
	db *sqlx.DB
}

// NewPointsRepository constructs the repository.
func NewPointsRepository(db *sqlx.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// FindByID returns a points ledger row by id.
func (r *PointsRepository) FindByID(ctx context.Context, schoolID, id string) (*models.StudentPoints, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_points WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`, pointsColumns)
	var points models.StudentPoints
	if err := r.db.GetContext(ctx, &points, query, id, schoolID); err != nil {
		return nil, err
	}
	return &points, nil
}

// FindByStudentAndCycle returns the ledger for one (student, cycle) pair.
func (r *PointsRepository) FindByStudentAndCycle(ctx context.Context, schoolID, studentID, cycleID string) (*models.StudentPoints, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_points
        WHERE school_id = $1 AND student_id = $2 AND cycle_id = $3 AND deleted_at IS NULL`, pointsColumns)
	var points models.StudentPoints
	if err := r.db.GetContext(ctx, &points, query, schoolID, studentID, cycleID); err != nil {
		return nil, err
	}
	return &points, nil
}

// Create persists a fresh ledger row.
func (r *PointsRepository) Create(ctx context.Context, points *models.StudentPoints) error {
	if points.ID == "" {
		points.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if points.CreatedAt.IsZero() {
		points.CreatedAt = now
	}
	points.UpdatedAt = now
	const query = `INSERT INTO student_points (id, school_id, student_id, cycle_id,
        academic_points, behavior_points, sports_points, culture_points, social_points,
        attendance_points, extra_points, total_points,
        level, current_xp, next_level_xp, level_title, level_color,
        attendance_streak, best_attendance_streak, conduct_streak, best_conduct_streak,
        homework_streak, best_homework_streak,
        group_rank, grade_rank, school_rank, rank_change, ranking_visible,
        deleted_at, created_at, updated_at)
        VALUES (:id, :school_id, :student_id, :cycle_id,
        :academic_points, :behavior_points, :sports_points, :culture_points, :social_points,
        :attendance_points, :extra_points, :total_points,
        :level, :current_xp, :next_level_xp, :level_title, :level_color,
        :attendance_streak, :best_attendance_streak, :conduct_streak, :best_conduct_streak,
        :homework_streak, :best_homework_streak,
        :group_rank, :grade_rank, :school_rank, :rank_change, :ranking_visible,
        :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, points); err != nil {
		return fmt.Errorf("create student points: %w", err)
	}
	return nil
}

// Update rewrites the mutable counters of a ledger row.
func (r *PointsRepository) Update(ctx context.Context, points *models.StudentPoints) error {
	points.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_points SET
        academic_points = :academic_points, behavior_points = :behavior_points,
        sports_points = :sports_points, culture_points = :culture_points,
        social_points = :social_points, attendance_points = :attendance_points,
        extra_points = :extra_points, total_points = :total_points,
        level = :level, current_xp = :current_xp, next_level_xp = :next_level_xp,
        level_title = :level_title, level_color = :level_color,
        attendance_streak = :attendance_streak, best_attendance_streak = :best_attendance_streak,
        conduct_streak = :conduct_streak, best_conduct_streak = :best_conduct_streak,
        homework_streak = :homework_streak, best_homework_streak = :best_homework_streak,
        ranking_visible = :ranking_visible, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, points)
	if err != nil {
		return fmt.Errorf("update student points: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendAward writes the history row and the updated ledger in one
// transaction. The ledger row is re-read under a row lock and apply computes
// the new state from that fresh copy, so concurrent awards to the same
// student serialize instead of overwriting each other's totals. The unique
// (points_id, source_type, source_id) constraint makes replayed events
// no-ops reported as ErrDuplicateSource.
func (r *PointsRepository) AppendAward(ctx context.Context, schoolID, pointsID string, history *models.PointsHistory, apply func(*models.StudentPoints) error) (*models.StudentPoints, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin award: %w", err)
	}

	lockQuery := fmt.Sprintf(`SELECT %s FROM student_points
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL FOR UPDATE`, pointsColumns)
	var points models.StudentPoints
	if err := tx.GetContext(ctx, &points, lockQuery, pointsID, schoolID); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock points row: %w", err)
	}
	if err := apply(&points); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	const historyQuery = `INSERT INTO points_history (id, school_id, points_id, category, amount,
        running_total, source_type, source_id, description, created_at)
        VALUES (:id, :school_id, :points_id, :category, :amount,
        :running_total, :source_type, :source_id, :description, :created_at)
        ON CONFLICT (points_id, source_type, source_id) DO NOTHING`
	result, err := tx.NamedExecContext(ctx, historyQuery, history)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("insert points history: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, ErrDuplicateSource
	}

	points.UpdatedAt = time.Now().UTC()
	const pointsQuery = `UPDATE student_points SET
        academic_points = :academic_points, behavior_points = :behavior_points,
        sports_points = :sports_points, culture_points = :culture_points,
        social_points = :social_points, attendance_points = :attendance_points,
        extra_points = :extra_points, total_points = :total_points,
        level = :level, current_xp = :current_xp, next_level_xp = :next_level_xp,
        level_title = :level_title, level_color = :level_color,
        updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id AND deleted_at IS NULL`
	if _, err := tx.NamedExecContext(ctx, pointsQuery, &points); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("apply points award: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit award: %w", err)
	}
	return &points, nil
}

// LastHistory returns the most recent history row for a ledger.
func (r *PointsRepository) LastHistory(ctx context.Context, schoolID, pointsID string) (*models.PointsHistory, error) {
	const query = `SELECT id, school_id, points_id, category, amount, running_total,
        source_type, source_id, description, created_at
        FROM points_history
        WHERE school_id = $1 AND points_id = $2
        ORDER BY created_at DESC, id DESC LIMIT 1`
	var history models.PointsHistory
	if err := r.db.GetContext(ctx, &history, query, schoolID, pointsID); err != nil {
		return nil, err
	}
	return &history, nil
}

// ListHistory returns the ledger history, oldest first.
func (r *PointsRepository) ListHistory(ctx context.Context, schoolID, pointsID string) ([]models.PointsHistory, error) {
	const query = `SELECT id, school_id, points_id, category, amount, running_total,
        source_type, source_id, description, created_at
        FROM points_history
        WHERE school_id = $1 AND points_id = $2
        ORDER BY created_at ASC, id ASC`
	var entries []models.PointsHistory
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, pointsID); err != nil {
		return nil, fmt.Errorf("list points history: %w", err)
	}
	return entries, nil
}

// ListForRanking reads a consistent snapshot of the ranking-visible ledgers in
// scope ordered by total points descending, student id ascending.
func (r *PointsRepository) ListForRanking(ctx context.Context, schoolID string, scope models.RankScope, scopeID, cycleID string) ([]models.RankingRow, error) {
	var query string
	var args []interface{}
	switch scope {
	case models.RankScopeGroup:
		query = `SELECT p.id AS points_id, p.student_id, p.total_points, p.level, p.group_rank AS old_rank
            FROM student_points p
            JOIN enrollments e ON e.student_id = p.student_id AND e.cycle_id = p.cycle_id AND e.school_id = p.school_id
            WHERE p.school_id = $1 AND p.cycle_id = $2 AND e.group_id = $3
            AND p.deleted_at IS NULL AND p.ranking_visible = TRUE
            AND e.status = $4 AND e.deleted_at IS NULL
            ORDER BY p.total_points DESC, p.student_id ASC`
		args = []interface{}{schoolID, cycleID, scopeID, models.EnrollmentStatusEnrolled}
	case models.RankScopeGrade:
		query = `SELECT p.id AS points_id, p.student_id, p.total_points, p.level, p.grade_rank AS old_rank
            FROM student_points p
            JOIN enrollments e ON e.student_id = p.student_id AND e.cycle_id = p.cycle_id AND e.school_id = p.school_id
            JOIN school_groups g ON g.id = e.group_id AND g.school_id = e.school_id
            WHERE p.school_id = $1 AND p.cycle_id = $2 AND g.grade_level = $3
            AND p.deleted_at IS NULL AND p.ranking_visible = TRUE
            AND e.status = $4 AND e.deleted_at IS NULL
            ORDER BY p.total_points DESC, p.student_id ASC`
		args = []interface{}{schoolID, cycleID, scopeID, models.EnrollmentStatusEnrolled}
	case models.RankScopeSchool:
		query = `SELECT p.id AS points_id, p.student_id, p.total_points, p.level, p.school_rank AS old_rank
            FROM student_points p
            WHERE p.school_id = $1 AND p.cycle_id = $2
            AND p.deleted_at IS NULL AND p.ranking_visible = TRUE
            ORDER BY p.total_points DESC, p.student_id ASC`
		args = []interface{}{schoolID, cycleID}
	default:
		return nil, fmt.Errorf("unsupported rank scope %q", scope)
	}

	var rows []models.RankingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list ranking rows: %w", err)
	}
	return rows, nil
}

// UpdateRanks writes computed ranks in one transaction, in the deterministic
// order provided by the caller.
func (r *PointsRepository) UpdateRanks(ctx context.Context, schoolID string, scope models.RankScope, assignments []models.RankAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	var column string
	switch scope {
	case models.RankScopeGroup:
		column = "group_rank"
	case models.RankScopeGrade:
		column = "grade_rank"
	case models.RankScopeSchool:
		column = "school_rank"
	default:
		return fmt.Errorf("unsupported rank scope %q", scope)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rank update: %w", err)
	}
	query := fmt.Sprintf(`UPDATE student_points SET %s = $3, rank_change = $4, updated_at = $5
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`, column)
	now := time.Now().UTC()
	for _, assignment := range assignments {
		if _, err := tx.ExecContext(ctx, query, assignment.PointsID, schoolID, assignment.Rank, assignment.RankChange, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update rank: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rank update: %w", err)
	}
	return nil
}
