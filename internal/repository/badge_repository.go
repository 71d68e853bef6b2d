package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolaris/academia-api/internal/models"
)

// BadgeRepository persists badge definitions and awards.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs the repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// FindBadge returns a badge definition scoped to the school.
func (r *BadgeRepository) FindBadge(ctx context.Context, schoolID, id string) (*models.Badge, error) {
	const query = `SELECT id, school_id, code, name, description, criteria, rarity, points,
        recurring, icon_url, active, created_at
        FROM badges WHERE id = $1 AND school_id = $2`
	var badge models.Badge
	if err := r.db.GetContext(ctx, &badge, query, id, schoolID); err != nil {
		return nil, err
	}
	return &badge, nil
}

// FindAward returns the existing award row for a (points, badge) pair.
func (r *BadgeRepository) FindAward(ctx context.Context, schoolID, pointsID, badgeID string) (*models.BadgeAward, error) {
	const query = `SELECT id, school_id, points_id, badge_id, reason, favorite, times_earned, awarded_at
        FROM badge_awards WHERE school_id = $1 AND points_id = $2 AND badge_id = $3`
	var award models.BadgeAward
	if err := r.db.GetContext(ctx, &award, query, schoolID, pointsID, badgeID); err != nil {
		return nil, err
	}
	return &award, nil
}

// CreateAward persists the first award of a badge.
func (r *BadgeRepository) CreateAward(ctx context.Context, award *models.BadgeAward) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if award.AwardedAt.IsZero() {
		award.AwardedAt = time.Now().UTC()
	}
	if award.TimesEarned == 0 {
		award.TimesEarned = 1
	}
	const query = `INSERT INTO badge_awards (id, school_id, points_id, badge_id, reason, favorite, times_earned, awarded_at)
        VALUES (:id, :school_id, :points_id, :badge_id, :reason, :favorite, :times_earned, :awarded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, award); err != nil {
		return fmt.Errorf("create badge award: %w", err)
	}
	return nil
}

// IncrementAward bumps the repeat counter of a recurring badge award.
func (r *BadgeRepository) IncrementAward(ctx context.Context, schoolID, awardID string, at time.Time) error {
	const query = `UPDATE badge_awards SET times_earned = times_earned + 1, awarded_at = $3
        WHERE id = $1 AND school_id = $2`
	if _, err := r.db.ExecContext(ctx, query, awardID, schoolID, at.UTC()); err != nil {
		return fmt.Errorf("increment badge award: %w", err)
	}
	return nil
}

// ListAwards returns the awards held by one points ledger.
func (r *BadgeRepository) ListAwards(ctx context.Context, schoolID, pointsID string) ([]models.BadgeAward, error) {
	const query = `SELECT id, school_id, points_id, badge_id, reason, favorite, times_earned, awarded_at
        FROM badge_awards WHERE school_id = $1 AND points_id = $2
        ORDER BY awarded_at DESC`
	var awards []models.BadgeAward
	if err := r.db.SelectContext(ctx, &awards, query, schoolID, pointsID); err != nil {
		return nil, fmt.Errorf("list badge awards: %w", err)
	}
	return awards, nil
}
