package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolaris/academia-api/internal/models"
)

const gradeColumns = `id, school_id, enrollment_id, student_id, subject_id, group_id, period,
        score, letter_grade, passed, eval_type, weight, locked, locked_at, locked_by,
        parent_visible, is_regrade, original_score, observations,
        created_by, deleted_at, created_at, updated_at`

// GradeRepository handles grade and audit persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// FindByID returns a non-deleted grade scoped to the school.
func (r *GradeRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`, gradeColumns)
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id, schoolID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Exists checks for a non-deleted grade on the (student, subject, group, period) key.
func (r *GradeRepository) Exists(ctx context.Context, schoolID, studentID, subjectID, groupID string, period int) (bool, error) {
	const query = `SELECT 1 FROM grades
        WHERE school_id = $1 AND student_id = $2 AND subject_id = $3 AND group_id = $4 AND period = $5
        AND deleted_at IS NULL LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, studentID, subjectID, groupID, period); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check grade: %w", err)
	}
	return true, nil
}

// Create persists a new grade row.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, school_id, enrollment_id, student_id, subject_id, group_id, period,
        score, letter_grade, passed, eval_type, weight, locked, locked_at, locked_by,
        parent_visible, is_regrade, original_score, observations, created_by, deleted_at, created_at, updated_at)
        VALUES (:id, :school_id, :enrollment_id, :student_id, :subject_id, :group_id, :period,
        :score, :letter_grade, :passed, :eval_type, :weight, :locked, :locked_at, :locked_by,
        :parent_visible, :is_regrade, :original_score, :observations, :created_by, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// ApplyRegrade writes the audit entry and the score change in one transaction.
// The row is locked and re-read first, so concurrent regrades serialize and
// the audit entry always records the score it actually replaced. The audit
// insert runs before the update so a crash between the two statements can
// never leave an unaudited mutation.
func (r *GradeRepository) ApplyRegrade(ctx context.Context, grade *models.Grade, audit *models.GradeAuditEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin regrade: %w", err)
	}

	const lockQuery = `SELECT score, observations, original_score FROM grades
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL FOR UPDATE`
	var current struct {
		Score         float64  `db:"score"`
		Observations  *string  `db:"observations"`
		OriginalScore *float64 `db:"original_score"`
	}
	if err := tx.GetContext(ctx, &current, lockQuery, grade.ID, grade.SchoolID); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock grade row: %w", err)
	}
	audit.PreviousScore = current.Score
	audit.PreviousObservations = current.Observations
	if current.OriginalScore != nil {
		grade.OriginalScore = current.OriginalScore
	} else {
		first := current.Score
		grade.OriginalScore = &first
	}

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	const auditQuery = `INSERT INTO grade_audit_log (id, school_id, grade_id, previous_score, new_score,
        previous_observations, new_observations, reason, actor_id, correlation_id, created_at)
        VALUES (:id, :school_id, :grade_id, :previous_score, :new_score,
        :previous_observations, :new_observations, :reason, :actor_id, :correlation_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, auditQuery, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grade audit: %w", err)
	}

	grade.UpdatedAt = time.Now().UTC()
	const gradeQuery = `UPDATE grades SET score = :score, letter_grade = :letter_grade, passed = :passed,
        is_regrade = :is_regrade, original_score = :original_score, observations = :observations,
        updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, gradeQuery, grade)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("apply regrade: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit regrade: %w", err)
	}
	return nil
}

// Lock marks a single grade as locked.
func (r *GradeRepository) Lock(ctx context.Context, schoolID, id, actorID string, at time.Time) error {
	const query = `UPDATE grades SET locked = TRUE, locked_at = $3, locked_by = $4, updated_at = $3
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, schoolID, at.UTC(), actorID)
	if err != nil {
		return fmt.Errorf("lock grade: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LockByGroupAndPeriod bulk locks every unlocked grade in a group/period and
// returns how many rows changed.
func (r *GradeRepository) LockByGroupAndPeriod(ctx context.Context, schoolID, groupID string, period int, actorID string, at time.Time) (int, error) {
	const query = `UPDATE grades SET locked = TRUE, locked_at = $4, locked_by = $5, updated_at = $4
        WHERE school_id = $1 AND group_id = $2 AND period = $3 AND locked = FALSE AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, schoolID, groupID, period, at.UTC(), actorID)
	if err != nil {
		return 0, fmt.Errorf("lock period grades: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("lock period grades: %w", err)
	}
	return int(affected), nil
}

// ListByEnrollment returns all non-deleted grades for one enrollment in
// deterministic order. The recalculation orchestrator folds over this set.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, schoolID, enrollmentID string) ([]models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades
        WHERE school_id = $1 AND enrollment_id = $2 AND deleted_at IS NULL
        ORDER BY subject_id ASC, period ASC`, gradeColumns)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, schoolID, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment grades: %w", err)
	}
	return grades, nil
}

// ListAudit returns the audit trail for a grade, oldest first.
func (r *GradeRepository) ListAudit(ctx context.Context, schoolID, gradeID string) ([]models.GradeAuditEntry, error) {
	const query = `SELECT id, school_id, grade_id, previous_score, new_score,
        previous_observations, new_observations, reason, actor_id, correlation_id, created_at
        FROM grade_audit_log
        WHERE school_id = $1 AND grade_id = $2
        ORDER BY created_at ASC, id ASC`
	var entries []models.GradeAuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, gradeID); err != nil {
		return nil, fmt.Errorf("list grade audit: %w", err)
	}
	return entries, nil
}
