package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled      EnrollmentStatus = "ENROLLED"
	EnrollmentStatusTempWithdrawn EnrollmentStatus = "TEMP_WITHDRAWN"
	EnrollmentStatusPermWithdrawn EnrollmentStatus = "PERM_WITHDRAWN"
	EnrollmentStatusFinished      EnrollmentStatus = "FINISHED"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusTempWithdrawn, EnrollmentStatusPermWithdrawn, EnrollmentStatusFinished:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusPermWithdrawn || s == EnrollmentStatusFinished
}

// WithdrawalKind distinguishes reversible from permanent withdrawals.
type WithdrawalKind string

const (
	WithdrawalTemporary WithdrawalKind = "TEMPORARY"
	WithdrawalPermanent WithdrawalKind = "PERMANENT"
)

// Valid returns true when the kind is supported.
func (k WithdrawalKind) Valid() bool {
	return k == WithdrawalTemporary || k == WithdrawalPermanent
}

// Enrollment captures a student's membership in a group for a school cycle.
// It owns the attendance counters and grade aggregates for that membership.
type Enrollment struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`

	StudentID string `db:"student_id" json:"student_id"`
	GroupID   string `db:"group_id" json:"group_id"`
	CycleID   string `db:"cycle_id" json:"cycle_id"`

	Status           EnrollmentStatus `db:"status" json:"status"`
	AdmittedAt       time.Time        `db:"admitted_at" json:"admitted_at"`
	WithdrawnAt      *time.Time       `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	WithdrawalReason *string          `db:"withdrawal_reason" json:"withdrawal_reason,omitempty"`
	WithdrawnBy      *string          `db:"withdrawn_by" json:"withdrawn_by,omitempty"`

	PreviousGroupID *string    `db:"previous_group_id" json:"previous_group_id,omitempty"`
	TransferredAt   *time.Time `db:"transferred_at" json:"transferred_at,omitempty"`
	TransferReason  *string    `db:"transfer_reason" json:"transfer_reason,omitempty"`

	RunningAverage    float64  `db:"running_average" json:"running_average"`
	CumulativeAverage float64  `db:"cumulative_average" json:"cumulative_average"`
	FinalAverage      *float64 `db:"final_average" json:"final_average,omitempty"`
	Passed            *bool    `db:"passed" json:"passed,omitempty"`
	FailedSubjects    int      `db:"failed_subjects" json:"failed_subjects"`

	TotalDays         int     `db:"total_days" json:"total_days"`
	AttendedDays      int     `db:"attended_days" json:"attended_days"`
	AbsentDays        int     `db:"absent_days" json:"absent_days"`
	LateDays          int     `db:"late_days" json:"late_days"`
	AttendancePercent float64 `db:"attendance_percent" json:"attendance_percent"`

	HasScholarship     bool     `db:"has_scholarship" json:"has_scholarship"`
	ScholarshipPercent *float64 `db:"scholarship_percent" json:"scholarship_percent,omitempty"`

	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	GroupID   string
	CycleID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
