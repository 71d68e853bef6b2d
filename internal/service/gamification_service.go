package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/events"
	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/internal/repository"
	"github.com/escolaris/academia-api/pkg/config"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type pointsRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.StudentPoints, error)
	FindByStudentAndCycle(ctx context.Context, schoolID, studentID, cycleID string) (*models.StudentPoints, error)
	Create(ctx context.Context, points *models.StudentPoints) error
	Update(ctx context.Context, points *models.StudentPoints) error
	AppendAward(ctx context.Context, schoolID, pointsID string, history *models.PointsHistory, apply func(*models.StudentPoints) error) (*models.StudentPoints, error)
	ListHistory(ctx context.Context, schoolID, pointsID string) ([]models.PointsHistory, error)
}

type badgeRepository interface {
	FindBadge(ctx context.Context, schoolID, id string) (*models.Badge, error)
	FindAward(ctx context.Context, schoolID, pointsID, badgeID string) (*models.BadgeAward, error)
	CreateAward(ctx context.Context, award *models.BadgeAward) error
	IncrementAward(ctx context.Context, schoolID, awardID string, at time.Time) error
	ListAwards(ctx context.Context, schoolID, pointsID string) ([]models.BadgeAward, error)
}

// AwardPointsRequest is the payload to award (or deduct) points.
type AwardPointsRequest struct {
	StudentID   string                `json:"student_id" validate:"required"`
	CycleID     string                `json:"cycle_id" validate:"required"`
	Category    models.PointsCategory `json:"category" validate:"required"`
	Amount      int                   `json:"amount"`
	SourceType  string                `json:"source_type" validate:"required"`
	SourceID    string                `json:"source_id" validate:"required"`
	Description *string               `json:"description"`
}

// UpdateStreakRequest extends or breaks one streak counter.
type UpdateStreakRequest struct {
	StudentID string            `json:"student_id" validate:"required"`
	CycleID   string            `json:"cycle_id" validate:"required"`
	Kind      models.StreakKind `json:"kind" validate:"required"`
	Continued bool              `json:"continued"`
}

// AwardBadgeRequest grants a badge to a student.
type AwardBadgeRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CycleID   string `json:"cycle_id" validate:"required"`
	BadgeID   string `json:"badge_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// GamificationService owns the points ledger, levels, streaks and badges.
type GamificationService struct {
	points    pointsRepository
	badges    badgeRepository
	publisher events.Publisher
	levels    config.GamificationConfig
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewGamificationService constructs the service.
func NewGamificationService(points pointsRepository, badges badgeRepository, publisher events.Publisher, levels config.GamificationConfig, validate *validator.Validate, logger *zap.Logger, clock Clock) *GamificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if publisher == nil {
		publisher = events.Nop()
	}
	return &GamificationService{points: points, badges: badges, publisher: publisher, levels: levels, validator: validate, logger: logger, clock: clock}
}

// Profile returns the ledger head for a student and cycle, creating an empty
// one on first access.
func (s *GamificationService) Profile(ctx context.Context, scope models.Scope, studentID, cycleID string) (*models.StudentPoints, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	points, err := s.points.FindByStudentAndCycle(ctx, scope.SchoolID, studentID, cycleID)
	if err == nil {
		return points, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load points")
	}

	tier := s.levels.TierFor(1)
	points = &models.StudentPoints{
		SchoolID:       scope.SchoolID,
		StudentID:      studentID,
		CycleID:        cycleID,
		Level:          1,
		NextLevelXP:    s.levels.ThresholdFor(1),
		LevelTitle:     tier.Title,
		LevelColor:     tier.Color,
		RankingVisible: true,
	}
	if err := s.points.Create(ctx, points); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create points ledger")
	}
	return points, nil
}

// History returns the full points ledger, oldest first.
func (s *GamificationService) History(ctx context.Context, scope models.Scope, studentID, cycleID string) ([]models.PointsHistory, error) {
	points, err := s.Profile(ctx, scope, studentID, cycleID)
	if err != nil {
		return nil, err
	}
	history, err := s.points.ListHistory(ctx, scope.SchoolID, points.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list points history")
	}
	return history, nil
}

// AwardPoints applies a point event to the ledger. The total never goes below
// zero and experience only grows. Replaying the same (source_type, source_id)
// returns the current ledger unchanged.
func (s *GamificationService) AwardPoints(ctx context.Context, scope models.Scope, req AwardPointsRequest) (*models.StudentPoints, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown points category")
	}
	if req.Amount == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be non-zero")
	}

	profile, err := s.Profile(ctx, scope, req.StudentID, req.CycleID)
	if err != nil {
		return nil, err
	}

	history := &models.PointsHistory{
		SchoolID:    scope.SchoolID,
		PointsID:    profile.ID,
		Category:    req.Category,
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Description: req.Description,
	}
	// The new state is computed inside the repository's row lock from the
	// freshly read ledger, never from the copy loaded above.
	var leveledTo []int
	points, err := s.points.AppendAward(ctx, scope.SchoolID, profile.ID, history, func(fresh *models.StudentPoints) error {
		amount := req.Amount
		if amount < 0 && fresh.TotalPoints+amount < 0 {
			// Deductions floor the total at zero.
			amount = -fresh.TotalPoints
		}
		fresh.AddToCategory(req.Category, amount)
		fresh.TotalPoints += amount
		leveledTo = nil
		if req.Amount > 0 {
			leveledTo = s.applyExperience(fresh, req.Amount)
		}
		history.Amount = amount
		history.RunningTotal = fresh.TotalPoints
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSource) {
			// Replay of an already-applied event: return the stored state.
			return s.Profile(ctx, scope, req.StudentID, req.CycleID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append award")
	}

	for _, level := range leveledTo {
		s.publisher.Publish(ctx, models.StudentLeveledUpEvent{
			SchoolID:   scope.SchoolID,
			StudentID:  req.StudentID,
			CycleID:    req.CycleID,
			NewLevel:   level,
			LevelTitle: s.levels.TierFor(level).Title,
			OccurredAt: s.clock.Now(),
		})
	}
	s.logger.Debug("points awarded",
		zap.String("student_id", req.StudentID),
		zap.String("category", string(req.Category)),
		zap.Int("amount", history.Amount),
		zap.Int("total", points.TotalPoints))
	return points, nil
}

// applyExperience adds XP and cascades level-ups, spending each threshold and
// carrying the remainder. Returns every level reached, in order.
func (s *GamificationService) applyExperience(points *models.StudentPoints, xp int) []int {
	points.CurrentXP += xp
	var reached []int
	for points.NextLevelXP > 0 && points.CurrentXP >= points.NextLevelXP {
		points.CurrentXP -= points.NextLevelXP
		points.Level++
		points.NextLevelXP = s.levels.ThresholdFor(points.Level)
		tier := s.levels.TierFor(points.Level)
		points.LevelTitle = tier.Title
		points.LevelColor = tier.Color
		reached = append(reached, points.Level)
	}
	return reached
}

// UpdateStreak extends the streak by one day or breaks it. The best-streak
// value is a running maximum and never decreases.
func (s *GamificationService) UpdateStreak(ctx context.Context, scope models.Scope, req UpdateStreakRequest) (*models.StudentPoints, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid streak payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown streak kind")
	}
	points, err := s.Profile(ctx, scope, req.StudentID, req.CycleID)
	if err != nil {
		return nil, err
	}

	next := func(current int) int {
		if !req.Continued {
			return 0
		}
		return current + 1
	}
	switch req.Kind {
	case models.StreakAttendance:
		points.AttendanceStreak = next(points.AttendanceStreak)
		if points.AttendanceStreak > points.BestAttendanceStreak {
			points.BestAttendanceStreak = points.AttendanceStreak
		}
	case models.StreakConduct:
		points.ConductStreak = next(points.ConductStreak)
		if points.ConductStreak > points.BestConductStreak {
			points.BestConductStreak = points.ConductStreak
		}
	case models.StreakHomework:
		points.HomeworkStreak = next(points.HomeworkStreak)
		if points.HomeworkStreak > points.BestHomeworkStreak {
			points.BestHomeworkStreak = points.HomeworkStreak
		}
	}
	if err := s.points.Update(ctx, points); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update streak")
	}
	return points, nil
}

// AwardBadge grants a badge. A non-recurring badge can only be earned once;
// recurring badges increment their counter. Badge points flow through the
// regular award path with the award row as the source.
func (s *GamificationService) AwardBadge(ctx context.Context, scope models.Scope, req AwardBadgeRequest) (*models.BadgeAward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}
	badge, err := s.badges.FindBadge(ctx, scope.SchoolID, req.BadgeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge")
	}
	if !badge.Active {
		return nil, appErrors.Clone(appErrors.ErrState, "badge is not active")
	}

	points, err := s.Profile(ctx, scope, req.StudentID, req.CycleID)
	if err != nil {
		return nil, err
	}

	award, err := s.badges.FindAward(ctx, scope.SchoolID, points.ID, badge.ID)
	switch {
	case err == nil:
		if !badge.Recurring {
			return nil, appErrors.Clone(appErrors.ErrAlreadyAwarded, "badge already earned")
		}
		now := s.clock.Now()
		if err := s.badges.IncrementAward(ctx, scope.SchoolID, award.ID, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to increment badge award")
		}
		award.TimesEarned++
		award.AwardedAt = now
	case err == sql.ErrNoRows:
		award = &models.BadgeAward{
			SchoolID:    scope.SchoolID,
			PointsID:    points.ID,
			BadgeID:     badge.ID,
			Reason:      req.Reason,
			TimesEarned: 1,
			AwardedAt:   s.clock.Now(),
		}
		if err := s.badges.CreateAward(ctx, award); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create badge award")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge award")
	}

	if badge.Points > 0 {
		description := "badge: " + badge.Name
		sourceID := award.ID
		if badge.Recurring {
			sourceID = fmt.Sprintf("%s#%d", award.ID, award.TimesEarned)
		}
		if _, err := s.AwardPoints(ctx, scope, AwardPointsRequest{
			StudentID:   req.StudentID,
			CycleID:     req.CycleID,
			Category:    models.PointsExtra,
			Amount:      badge.Points,
			SourceType:  "badge_award",
			SourceID:    sourceID,
			Description: &description,
		}); err != nil {
			return nil, err
		}
	}

	s.publisher.Publish(ctx, models.BadgeAwardedEvent{
		SchoolID:    scope.SchoolID,
		StudentID:   req.StudentID,
		BadgeID:     badge.ID,
		BadgeCode:   badge.Code,
		TimesEarned: award.TimesEarned,
		OccurredAt:  s.clock.Now(),
	})
	return award, nil
}

// Badges returns the awards earned by a student in a cycle.
func (s *GamificationService) Badges(ctx context.Context, scope models.Scope, studentID, cycleID string) ([]models.BadgeAward, error) {
	points, err := s.Profile(ctx, scope, studentID, cycleID)
	if err != nil {
		return nil, err
	}
	awards, err := s.badges.ListAwards(ctx, scope.SchoolID, points.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badge awards")
	}
	return awards, nil
}
