package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escolaris/academia-api/internal/models"
)

// AttendanceRepository reads daily attendance facts. The aggregator never
// writes them; capture happens outside this core.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByEnrollment returns the attendance rows for one enrollment up to and
// including the given date, oldest first.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, schoolID, enrollmentID string, until time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, school_id, enrollment_id, date, status, notes, created_at
        FROM attendance_records
        WHERE school_id = $1 AND enrollment_id = $2 AND date <= $3
        ORDER BY date ASC, id ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, schoolID, enrollmentID, until.UTC()); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
