package models

import "time"

// EvaluationType classifies how a grade was produced.
type EvaluationType string

const (
	EvaluationPartial       EvaluationType = "PARTIAL"
	EvaluationFinal         EvaluationType = "FINAL"
	EvaluationContinuous    EvaluationType = "CONTINUOUS"
	EvaluationExtraordinary EvaluationType = "EXTRAORDINARY"
)

// Valid returns true when the evaluation type is supported.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationPartial, EvaluationFinal, EvaluationContinuous, EvaluationExtraordinary:
		return true
	default:
		return false
	}
}

// Grade records one score per (student, subject, group, period). Once locked
// it only changes through the regrade path, which always leaves an audit entry.
type Grade struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`

	EnrollmentID string `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string `db:"student_id" json:"student_id"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	GroupID      string `db:"group_id" json:"group_id"`
	Period       int    `db:"period" json:"period"`

	Score       float64        `db:"score" json:"score"`
	LetterGrade string         `db:"letter_grade" json:"letter_grade"`
	Passed      bool           `db:"passed" json:"passed"`
	EvalType    EvaluationType `db:"eval_type" json:"eval_type"`
	Weight      float64        `db:"weight" json:"weight"`

	Locked   bool       `db:"locked" json:"locked"`
	LockedAt *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy *string    `db:"locked_by" json:"locked_by,omitempty"`

	ParentVisible bool     `db:"parent_visible" json:"parent_visible"`
	IsRegrade     bool     `db:"is_regrade" json:"is_regrade"`
	OriginalScore *float64 `db:"original_score" json:"original_score,omitempty"`
	Observations  *string  `db:"observations" json:"observations,omitempty"`

	CreatedBy string     `db:"created_by" json:"created_by"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// GradeAuditEntry is the immutable, append-only record of a grade mutation.
// Rows are written before the mutation applies and are never updated or deleted.
type GradeAuditEntry struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	GradeID  string `db:"grade_id" json:"grade_id"`

	PreviousScore        float64 `db:"previous_score" json:"previous_score"`
	NewScore             float64 `db:"new_score" json:"new_score"`
	PreviousObservations *string `db:"previous_observations" json:"previous_observations,omitempty"`
	NewObservations      *string `db:"new_observations" json:"new_observations,omitempty"`

	Reason        string    `db:"reason" json:"reason"`
	ActorID       string    `db:"actor_id" json:"actor_id"`
	CorrelationID *string   `db:"correlation_id" json:"correlation_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GradeFilter allows querying grade rows.
type GradeFilter struct {
	EnrollmentID string
	StudentID    string
	SubjectID    string
	GroupID      string
	Period       int
}
