package models

import "time"

// BadgeRarity grades how hard a badge is to earn.
type BadgeRarity string

const (
	BadgeCommon    BadgeRarity = "COMMON"
	BadgeRare      BadgeRarity = "RARE"
	BadgeEpic      BadgeRarity = "EPIC"
	BadgeLegendary BadgeRarity = "LEGENDARY"
)

// Valid returns true when the rarity is supported.
func (r BadgeRarity) Valid() bool {
	switch r {
	case BadgeCommon, BadgeRare, BadgeEpic, BadgeLegendary:
		return true
	default:
		return false
	}
}

// Badge defines award criteria, rarity and the points it grants.
type Badge struct {
	ID          string      `db:"id" json:"id"`
	SchoolID    string      `db:"school_id" json:"school_id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	Description *string     `db:"description" json:"description,omitempty"`
	Criteria    string      `db:"criteria" json:"criteria"`
	Rarity      BadgeRarity `db:"rarity" json:"rarity"`
	Points      int         `db:"points" json:"points"`
	Recurring   bool        `db:"recurring" json:"recurring"`
	IconURL     *string     `db:"icon_url" json:"icon_url,omitempty"`
	Active      bool        `db:"active" json:"active"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// BadgeAward links a points ledger to a badge. Recurring badges increment
// TimesEarned instead of duplicating the row.
type BadgeAward struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	PointsID    string    `db:"points_id" json:"points_id"`
	BadgeID     string    `db:"badge_id" json:"badge_id"`
	Reason      string    `db:"reason" json:"reason"`
	Favorite    bool      `db:"favorite" json:"favorite"`
	TimesEarned int       `db:"times_earned" json:"times_earned"`
	AwardedAt   time.Time `db:"awarded_at" json:"awarded_at"`
}
