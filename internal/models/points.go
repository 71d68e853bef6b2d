package models

import "time"

// PointsCategory classifies point-earning events.
type PointsCategory string

const (
	PointsAcademic   PointsCategory = "ACADEMIC"
	PointsBehavior   PointsCategory = "BEHAVIOR"
	PointsSports     PointsCategory = "SPORTS"
	PointsCulture    PointsCategory = "CULTURE"
	PointsSocial     PointsCategory = "SOCIAL"
	PointsAttendance PointsCategory = "ATTENDANCE"
	PointsExtra      PointsCategory = "EXTRA"
)

// Valid returns true when the category is supported.
func (c PointsCategory) Valid() bool {
	switch c {
	case PointsAcademic, PointsBehavior, PointsSports, PointsCulture, PointsSocial, PointsAttendance, PointsExtra:
		return true
	default:
		return false
	}
}

// StreakKind names the streak counters tracked per student.
type StreakKind string

const (
	StreakAttendance StreakKind = "ATTENDANCE"
	StreakConduct    StreakKind = "CONDUCT"
	StreakHomework   StreakKind = "HOMEWORK"
)

// Valid returns true when the streak kind is supported.
func (k StreakKind) Valid() bool {
	switch k {
	case StreakAttendance, StreakConduct, StreakHomework:
		return true
	default:
		return false
	}
}

// RankScope selects which ranking to recompute.
type RankScope string

const (
	RankScopeGroup  RankScope = "GROUP"
	RankScopeGrade  RankScope = "GRADE"
	RankScopeSchool RankScope = "SCHOOL"
)

// Valid returns true when the scope is supported.
func (s RankScope) Valid() bool {
	switch s {
	case RankScopeGroup, RankScopeGrade, RankScopeSchool:
		return true
	default:
		return false
	}
}

// StudentPoints is the per-(student, cycle) gamification ledger head: category
// totals, level state, streaks and rankings. Mutated only by the engine.
type StudentPoints struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`

	StudentID string `db:"student_id" json:"student_id"`
	CycleID   string `db:"cycle_id" json:"cycle_id"`

	AcademicPoints   int `db:"academic_points" json:"academic_points"`
	BehaviorPoints   int `db:"behavior_points" json:"behavior_points"`
	SportsPoints     int `db:"sports_points" json:"sports_points"`
	CulturePoints    int `db:"culture_points" json:"culture_points"`
	SocialPoints     int `db:"social_points" json:"social_points"`
	AttendancePoints int `db:"attendance_points" json:"attendance_points"`
	ExtraPoints      int `db:"extra_points" json:"extra_points"`
	TotalPoints      int `db:"total_points" json:"total_points"`

	Level       int    `db:"level" json:"level"`
	CurrentXP   int    `db:"current_xp" json:"current_xp"`
	NextLevelXP int    `db:"next_level_xp" json:"next_level_xp"`
	LevelTitle  string `db:"level_title" json:"level_title"`
	LevelColor  string `db:"level_color" json:"level_color"`

	AttendanceStreak     int `db:"attendance_streak" json:"attendance_streak"`
	BestAttendanceStreak int `db:"best_attendance_streak" json:"best_attendance_streak"`
	ConductStreak        int `db:"conduct_streak" json:"conduct_streak"`
	BestConductStreak    int `db:"best_conduct_streak" json:"best_conduct_streak"`
	HomeworkStreak       int `db:"homework_streak" json:"homework_streak"`
	BestHomeworkStreak   int `db:"best_homework_streak" json:"best_homework_streak"`

	GroupRank  *int `db:"group_rank" json:"group_rank,omitempty"`
	GradeRank  *int `db:"grade_rank" json:"grade_rank,omitempty"`
	SchoolRank *int `db:"school_rank" json:"school_rank,omitempty"`
	RankChange int  `db:"rank_change" json:"rank_change"`

	RankingVisible bool `db:"ranking_visible" json:"ranking_visible"`

	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CategoryTotal returns the counter for one category.
func (p *StudentPoints) CategoryTotal(category PointsCategory) int {
	switch category {
	case PointsAcademic:
		return p.AcademicPoints
	case PointsBehavior:
		return p.BehaviorPoints
	case PointsSports:
		return p.SportsPoints
	case PointsCulture:
		return p.CulturePoints
	case PointsSocial:
		return p.SocialPoints
	case PointsAttendance:
		return p.AttendancePoints
	case PointsExtra:
		return p.ExtraPoints
	default:
		return 0
	}
}

// AddToCategory adjusts the counter for one category.
func (p *StudentPoints) AddToCategory(category PointsCategory, amount int) {
	switch category {
	case PointsAcademic:
		p.AcademicPoints += amount
	case PointsBehavior:
		p.BehaviorPoints += amount
	case PointsSports:
		p.SportsPoints += amount
	case PointsCulture:
		p.CulturePoints += amount
	case PointsSocial:
		p.SocialPoints += amount
	case PointsAttendance:
		p.AttendancePoints += amount
	case PointsExtra:
		p.ExtraPoints += amount
	}
}

// PointsHistory is the append-only ledger of point-earning events.
type PointsHistory struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	PointsID string `db:"points_id" json:"points_id"`

	Category     PointsCategory `db:"category" json:"category"`
	Amount       int            `db:"amount" json:"amount"`
	RunningTotal int            `db:"running_total" json:"running_total"`

	SourceType  string  `db:"source_type" json:"source_type"`
	SourceID    string  `db:"source_id" json:"source_id"`
	Description *string `db:"description" json:"description,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RankingRow is the snapshot row read during a ranking recompute.
type RankingRow struct {
	PointsID    string `db:"points_id" json:"points_id"`
	StudentID   string `db:"student_id" json:"student_id"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	Level       int    `db:"level" json:"level"`
	OldRank     *int   `db:"old_rank" json:"old_rank,omitempty"`
}

// RankAssignment carries one computed rank back to storage.
type RankAssignment struct {
	PointsID   string `json:"points_id"`
	Rank       int    `json:"rank"`
	RankChange int    `json:"rank_change"`
}

// LeaderboardEntry is one row of a published leaderboard.
type LeaderboardEntry struct {
	StudentID   string `json:"student_id"`
	Rank        int    `json:"rank"`
	TotalPoints int    `json:"total_points"`
	Level       int    `json:"level"`
	RankChange  int    `json:"rank_change"`
}

// Leaderboard is the cached result of a ranking recompute.
type Leaderboard struct {
	Scope      RankScope          `json:"scope"`
	ScopeID    string             `json:"scope_id"`
	CycleID    string             `json:"cycle_id"`
	ComputedAt time.Time          `json:"computed_at"`
	Entries    []LeaderboardEntry `json:"entries"`
}
