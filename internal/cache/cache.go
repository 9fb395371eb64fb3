package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	LiveListTTL = 2 * time.Minute
	MatchTTL    = 2 * time.Hour
)

const liveListKey = "matches:live"

// SnapshotCache keeps the latest broadcast state in Redis so HTTP reads
// and freshly connected clients don't hit the store for every request.
type SnapshotCache struct {
	client *redis.Client
}

// NewSnapshotCache creates a cache backed by the given Redis client
func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

// WriteLiveMatches stores the current live-match list
func (c *SnapshotCache) WriteLiveMatches(ctx context.Context, matches []models.Match) error {
	data, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("marshaling live matches: %w", err)
	}
	return c.client.Set(ctx, liveListKey, data, LiveListTTL).Err()
}

// ReadLiveMatches returns the cached live-match list, or ErrNotFound on a
// cache miss.
func (c *SnapshotCache) ReadLiveMatches(ctx context.Context) ([]models.Match, error) {
	data, err := c.client.Get(ctx, liveListKey).Result()
	if err == redis.Nil {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := json.Unmarshal([]byte(data), &matches); err != nil {
		return nil, fmt.Errorf("unmarshaling live matches: %w", err)
	}
	return matches, nil
}

// WriteMatch stores one match snapshot
func (c *SnapshotCache) WriteMatch(ctx context.Context, match *models.Match) error {
	key := fmt.Sprintf("match:%s:snapshot", match.ID.Hex())

	data, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("marshaling match: %w", err)
	}
	return c.client.Set(ctx, key, data, MatchTTL).Err()
}

// ReadMatch returns a cached match snapshot, or ErrNotFound on a miss
func (c *SnapshotCache) ReadMatch(ctx context.Context, id string) (*models.Match, error) {
	key := fmt.Sprintf("match:%s:snapshot", id)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var match models.Match
	if err := json.Unmarshal([]byte(data), &match); err != nil {
		return nil, fmt.Errorf("unmarshaling match: %w", err)
	}
	return &match, nil
}
