package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolaris/academia-api/internal/models"
)

const enrollmentColumns = `id, school_id, student_id, group_id, cycle_id, status, admitted_at,
        withdrawn_at, withdrawal_reason, withdrawn_by, previous_group_id, transferred_at, transfer_reason,
        running_average, cumulative_average, final_average, passed, failed_subjects,
        total_days, attended_days, absent_days, late_days, attendance_percent,
        has_scholarship, scholarship_percent, deleted_at, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns a non-deleted enrollment scoped to the school.
func (r *EnrollmentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, schoolID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks for a non-deleted enrollment on the (student, group, cycle) triple.
func (r *EnrollmentRepository) Exists(ctx context.Context, schoolID, studentID, groupID, cycleID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments
        WHERE school_id = $1 AND student_id = $2 AND group_id = $3 AND cycle_id = $4 AND deleted_at IS NULL
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, studentID, groupID, cycleID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// OccupiedSeats counts enrollments currently holding a seat in the group.
// Temporary withdrawals keep their seat; permanent ones release it.
func (r *EnrollmentRepository) OccupiedSeats(ctx context.Context, schoolID, groupID, cycleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments
        WHERE school_id = $1 AND group_id = $2 AND cycle_id = $3 AND deleted_at IS NULL
        AND status IN ($4, $5)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, groupID, cycleID,
		models.EnrollmentStatusEnrolled, models.EnrollmentStatusTempWithdrawn); err != nil {
		return 0, fmt.Errorf("count occupied seats: %w", err)
	}
	return count, nil
}

// GroupCapacity returns the seat limit of a group within the school.
func (r *EnrollmentRepository) GroupCapacity(ctx context.Context, schoolID, groupID string) (int, error) {
	const query = `SELECT capacity FROM school_groups WHERE id = $1 AND school_id = $2`
	var capacity int
	if err := r.db.GetContext(ctx, &capacity, query, groupID, schoolID); err != nil {
		return 0, err
	}
	return capacity, nil
}

// StudentBelongs verifies the student is registered to the school.
func (r *EnrollmentRepository) StudentBelongs(ctx context.Context, schoolID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, school_id, student_id, group_id, cycle_id, status, admitted_at,
        withdrawn_at, withdrawal_reason, withdrawn_by, previous_group_id, transferred_at, transfer_reason,
        running_average, cumulative_average, final_average, passed, failed_subjects,
        total_days, attended_days, absent_days, late_days, attendance_percent,
        has_scholarship, scholarship_percent, deleted_at, created_at, updated_at)
        VALUES (:id, :school_id, :student_id, :group_id, :cycle_id, :status, :admitted_at,
        :withdrawn_at, :withdrawal_reason, :withdrawn_by, :previous_group_id, :transferred_at, :transfer_reason,
        :running_average, :cumulative_average, :final_average, :passed, :failed_subjects,
        :total_days, :attended_days, :absent_days, :late_days, :attendance_percent,
        :has_scholarship, :scholarship_percent, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an enrollment row.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status,
        withdrawn_at = :withdrawn_at, withdrawal_reason = :withdrawal_reason, withdrawn_by = :withdrawn_by,
        group_id = :group_id, previous_group_id = :previous_group_id, transferred_at = :transferred_at, transfer_reason = :transfer_reason,
        running_average = :running_average, cumulative_average = :cumulative_average,
        final_average = :final_average, passed = :passed, failed_subjects = :failed_subjects,
        total_days = :total_days, attended_days = :attended_days, absent_days = :absent_days,
        late_days = :late_days, attendance_percent = :attendance_percent,
        has_scholarship = :has_scholarship, scholarship_percent = :scholarship_percent,
        updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete tombstones an enrollment. Rows are never hard-deleted.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, schoolID, id string) error {
	const query = `UPDATE enrollments SET deleted_at = $3, updated_at = $3
        WHERE id = $1 AND school_id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, schoolID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns enrollments matching the filter with a total count.
func (r *EnrollmentRepository) List(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	conditions := []string{"school_id = $1", "deleted_at IS NULL"}
	args := []interface{}{schoolID}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.CycleID != "" {
		conditions = append(conditions, fmt.Sprintf("cycle_id = $%d", len(args)+1))
		args = append(args, filter.CycleID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM enrollments%s ORDER BY id ASC LIMIT %d OFFSET %d",
		enrollmentColumns, clause, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListActiveIDs returns enrollment ids for a cycle in deterministic order so
// batch jobs can resume without skipping or duplicating rows.
func (r *EnrollmentRepository) ListActiveIDs(ctx context.Context, schoolID, cycleID string) ([]string, error) {
	const query = `SELECT id FROM enrollments
        WHERE school_id = $1 AND cycle_id = $2 AND status = $3 AND deleted_at IS NULL
        ORDER BY id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, schoolID, cycleID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list active enrollment ids: %w", err)
	}
	return ids, nil
}
