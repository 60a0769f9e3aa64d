package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pulsefm/model"

	"github.com/redis/go-redis/v9"
)

const (
	nowPlayingKey = "radio:now"
	nextComingKey = "radio:next"
	queueKey      = "radio:queue" // Sorted Set, score = position
	mirrorTTL     = 24 * time.Hour
)

// PlaybackCache mirrors the in-memory playback state into Redis so the
// public API survives a restart with a sensible view. The in-memory
// store stays authoritative; every write here is best-effort.
type PlaybackCache struct {
	client *redis.Client
}

// NewPlaybackCache wires the cache to the shared client.
func NewPlaybackCache() *PlaybackCache {
	return &PlaybackCache{client: RedisClient}
}

// SetNow mirrors the "now playing" record. A nil record clears the key.
func (c *PlaybackCache) SetNow(ctx context.Context, rec *model.PlaybackRecord) error {
	return c.setRecord(ctx, nowPlayingKey, rec)
}

// SetNext mirrors the "next coming" record. A nil record clears the key.
func (c *PlaybackCache) SetNext(ctx context.Context, rec *model.PlaybackRecord) error {
	return c.setRecord(ctx, nextComingKey, rec)
}

func (c *PlaybackCache) setRecord(ctx context.Context, key string, rec *model.PlaybackRecord) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if rec == nil {
		return c.client.Del(ctx, key).Err()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal playback record: %w", err)
	}
	return c.client.Set(ctx, key, data, mirrorTTL).Err()
}

// GetNow reads the mirrored "now playing" record, nil when absent.
func (c *PlaybackCache) GetNow(ctx context.Context) (*model.PlaybackRecord, error) {
	return c.getRecord(ctx, nowPlayingKey)
}

// GetNext reads the mirrored "next coming" record, nil when absent.
func (c *PlaybackCache) GetNext(ctx context.Context) (*model.PlaybackRecord, error) {
	return c.getRecord(ctx, nextComingKey)
}

func (c *PlaybackCache) getRecord(ctx context.Context, key string) (*model.PlaybackRecord, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get playback record: %w", err)
	}

	var rec model.PlaybackRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playback record: %w", err)
	}
	return &rec, nil
}

// SaveQueue replaces the mirrored queue with the given snapshot.
// Entries are stored in a sorted set scored by position.
func (c *PlaybackCache) SaveQueue(ctx context.Context, entries []model.QueueEntry) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, queueKey)
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}
		pipe.ZAdd(ctx, queueKey, redis.Z{
			Score:  float64(entry.Position),
			Member: data,
		})
	}
	pipe.Expire(ctx, queueKey, mirrorTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadQueue reads the mirrored queue in position order.
func (c *PlaybackCache) LoadQueue(ctx context.Context) ([]model.QueueEntry, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	result, err := c.client.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.QueueEntry{}, nil
		}
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	var entries []model.QueueEntry
	for _, data := range result {
		var entry model.QueueEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
