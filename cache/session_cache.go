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
	sessionsKey        = "radio:sessions"         // Hash: apiKey -> ClientSession JSON
	sessionPresenceKey = "radio:presence:%s"      // String: heartbeat key per apiKey
	sessionOnlineSet   = "radio:online_sessions"  // Set: apiKeys seen recently
	sessionTTL         = 24 * time.Hour
	presenceTTL        = 60 * time.Second
)

// SessionCache keeps session descriptors and heartbeat presence in
// Redis so fleet state survives restarts and can be inspected from
// outside the process.
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache wires the cache to the shared client.
func NewSessionCache() *SessionCache {
	return &SessionCache{client: RedisClient}
}

// SaveSession stores or refreshes a session descriptor.
func (c *SessionCache) SaveSession(ctx context.Context, s *model.ClientSession) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, sessionsKey, s.APIKey, data)
	pipe.Expire(ctx, sessionsKey, sessionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RemoveSession drops a session descriptor and its presence marks.
func (c *SessionCache) RemoveSession(ctx context.Context, apiKey string) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.HDel(ctx, sessionsKey, apiKey)
	pipe.Del(ctx, fmt.Sprintf(sessionPresenceKey, apiKey))
	pipe.SRem(ctx, sessionOnlineSet, apiKey)
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat refreshes the presence mark for a session.
func (c *SessionCache) Heartbeat(ctx context.Context, apiKey string) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(sessionPresenceKey, apiKey), time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, sessionOnlineSet, apiKey)
	pipe.Expire(ctx, sessionOnlineSet, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// IsAlive reports whether the presence mark for a session has not
// expired yet.
func (c *SessionCache) IsAlive(ctx context.Context, apiKey string) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}

	n, err := c.client.Exists(ctx, fmt.Sprintf(sessionPresenceKey, apiKey)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineCount returns the number of sessions with a live presence mark.
func (c *SessionCache) OnlineCount(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}

	members, err := c.client.SMembers(ctx, sessionOnlineSet).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}

	var alive int64
	for _, apiKey := range members {
		ok, err := c.IsAlive(ctx, apiKey)
		if err != nil {
			continue
		}
		if ok {
			alive++
		} else {
			c.client.SRem(ctx, sessionOnlineSet, apiKey)
		}
	}
	return alive, nil
}
