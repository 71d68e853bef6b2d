package models

import "time"

// EventType names a domain event emitted by the core.
type EventType string

const (
	EventGradeChanged     EventType = "grade.changed"
	EventStudentLeveledUp EventType = "student.leveled_up"
	EventBadgeAwarded     EventType = "badge.awarded"
	EventCycleFinalized   EventType = "cycle.finalized"
)

// Event is implemented by every domain event payload. The core publishes
// events; delivery to external channels is a collaborator concern.
type Event interface {
	Type() EventType
}

// GradeChangedEvent fires after a grade capture or regrade applies.
type GradeChangedEvent struct {
	SchoolID      string    `json:"school_id"`
	GradeID       string    `json:"grade_id"`
	StudentID     string    `json:"student_id"`
	SubjectID     string    `json:"subject_id"`
	Period        int       `json:"period"`
	PreviousScore *float64  `json:"previous_score,omitempty"`
	NewScore      float64   `json:"new_score"`
	ActorID       string    `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Type implements Event.
func (GradeChangedEvent) Type() EventType { return EventGradeChanged }

// StudentLeveledUpEvent fires once per level gained.
type StudentLeveledUpEvent struct {
	SchoolID   string    `json:"school_id"`
	StudentID  string    `json:"student_id"`
	CycleID    string    `json:"cycle_id"`
	NewLevel   int       `json:"new_level"`
	LevelTitle string    `json:"level_title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Type implements Event.
func (StudentLeveledUpEvent) Type() EventType { return EventStudentLeveledUp }

// BadgeAwardedEvent fires after a badge award or repeat.
type BadgeAwardedEvent struct {
	SchoolID    string    `json:"school_id"`
	StudentID   string    `json:"student_id"`
	BadgeID     string    `json:"badge_id"`
	BadgeCode   string    `json:"badge_code"`
	TimesEarned int       `json:"times_earned"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Type implements Event.
func (BadgeAwardedEvent) Type() EventType { return EventBadgeAwarded }

// CycleFinalizedEvent fires when an enrollment transitions to FINISHED.
type CycleFinalizedEvent struct {
	SchoolID     string    `json:"school_id"`
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	CycleID      string    `json:"cycle_id"`
	FinalAverage float64   `json:"final_average"`
	Passed       bool      `json:"passed"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Type implements Event.
func (CycleFinalizedEvent) Type() EventType { return EventCycleFinalized }
