package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/models"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

type rankingRepository interface {
	ListForRanking(ctx context.Context, schoolID string, scope models.RankScope, scopeID, cycleID string) ([]models.RankingRow, error)
	UpdateRanks(ctx context.Context, schoolID string, scope models.RankScope, assignments []models.RankAssignment) error
}

type scopeLocker interface {
	Acquire(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type leaderboardStore interface {
	Put(ctx context.Context, schoolID, scope, scopeID, cycleID string, payload interface{}) error
	Get(ctx context.Context, schoolID, scope, scopeID, cycleID string, dest interface{}) (bool, error)
}

// RankingService recomputes and publishes leaderboards. One recompute per
// (scope, scope id) runs at a time; overlapping requests get a retryable
// conflict instead of racing.
type RankingService struct {
	repo   rankingRepository
	locks  scopeLocker
	boards leaderboardStore
	logger *zap.Logger
	clock  Clock
}

// NewRankingService constructs the service.
func NewRankingService(repo rankingRepository, locks scopeLocker, boards leaderboardStore, logger *zap.Logger, clock Clock) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RankingService{repo: repo, locks: locks, boards: boards, logger: logger, clock: clock}
}

func lockKey(schoolID string, scope models.RankScope, scopeID string) string {
	return fmt.Sprintf("ranking:%s:%s:%s", schoolID, scope, scopeID)
}

// Recompute reads a snapshot of visible totals, assigns ordinal 1-based ranks
// (equal totals take consecutive ranks, broken by student id) and writes them
// back together with the movement relative to the previous run. The fresh
// leaderboard replaces the cached one.
func (s *RankingService) Recompute(ctx context.Context, scope models.Scope, rankScope models.RankScope, scopeID, cycleID string) (*models.Leaderboard, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if !rankScope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown ranking scope")
	}

	key := lockKey(scope.SchoolID, rankScope, scopeID)
	token, ok, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire ranking lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrScopeLocked, "a ranking recompute is already running for this scope")
	}
	defer func() {
		if err := s.locks.Release(ctx, key, token); err != nil {
			s.logger.Warn("failed to release ranking lock", zap.String("key", key), zap.Error(err))
		}
	}()

	rows, err := s.repo.ListForRanking(ctx, scope.SchoolID, rankScope, scopeID, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranking snapshot")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyScope, "no visible students in this scope")
	}

	// Rows arrive ordered by total points desc, then student id asc.
	assignments := make([]models.RankAssignment, 0, len(rows))
	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		rank := i + 1
		change := 0
		if row.OldRank != nil {
			change = *row.OldRank - rank
		}
		assignments = append(assignments, models.RankAssignment{
			PointsID:   row.PointsID,
			Rank:       rank,
			RankChange: change,
		})
		entries = append(entries, models.LeaderboardEntry{
			StudentID:   row.StudentID,
			Rank:        rank,
			TotalPoints: row.TotalPoints,
			Level:       row.Level,
			RankChange:  change,
		})
	}

	if err := s.repo.UpdateRanks(ctx, scope.SchoolID, rankScope, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store ranks")
	}

	leaderboard := &models.Leaderboard{
		Scope:      rankScope,
		ScopeID:    scopeID,
		CycleID:    cycleID,
		ComputedAt: s.clock.Now(),
		Entries:    entries,
	}
	if err := s.boards.Put(ctx, scope.SchoolID, string(rankScope), scopeID, cycleID, leaderboard); err != nil {
		s.logger.Warn("failed to cache leaderboard", zap.String("key", key), zap.Error(err))
	}
	s.logger.Info("ranking recomputed",
		zap.String("school_id", scope.SchoolID),
		zap.String("scope", string(rankScope)),
		zap.String("scope_id", scopeID),
		zap.Int("students", len(entries)))
	return leaderboard, nil
}

// Leaderboard returns the cached leaderboard, recomputing on a miss.
func (s *RankingService) Leaderboard(ctx context.Context, scope models.Scope, rankScope models.RankScope, scopeID, cycleID string) (*models.Leaderboard, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school and actor required")
	}
	if !rankScope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown ranking scope")
	}
	var cached models.Leaderboard
	hit, err := s.boards.Get(ctx, scope.SchoolID, string(rankScope), scopeID, cycleID, &cached)
	if err != nil {
		s.logger.Warn("leaderboard cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}
	return s.Recompute(ctx, scope, rankScope, scopeID, cycleID)
}
