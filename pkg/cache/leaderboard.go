package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache stores the latest computed leaderboard per ranking scope so
// dashboard reads never touch the points table.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache builds the cache with the given entry TTL.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func leaderboardKey(schoolID, scope, scopeID, cycleID string) string {
	return fmt.Sprintf("leaderboard:%s:%s:%s:%s", schoolID, scope, scopeID, cycleID)
}

// Put serialises and stores the leaderboard payload.
func (c *LeaderboardCache) Put(ctx context.Context, schoolID, scope, scopeID, cycleID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	return c.client.Set(ctx, leaderboardKey(schoolID, scope, scopeID, cycleID), raw, c.ttl).Err()
}

// Get loads a cached leaderboard into dest. It returns false on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, schoolID, scope, scopeID, cycleID string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, leaderboardKey(schoolID, scope, scopeID, cycleID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	return true, nil
}
