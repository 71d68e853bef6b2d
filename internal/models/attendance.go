package models

import "time"

// AttendanceStatus represents the status for daily attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is a single daily attendance fact. The aggregator folds
// these into enrollment counters and never mutates them.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	SchoolID     string           `db:"school_id" json:"school_id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceSummary holds the folded counters for one enrollment.
type AttendanceSummary struct {
	TotalDays    int     `json:"total_days"`
	AttendedDays int     `json:"attended_days"`
	AbsentDays   int     `json:"absent_days"`
	LateDays     int     `json:"late_days"`
	Percent      float64 `json:"percent"`
}
