package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/crmdataplatform/internal/domain/providers"
	redisclient "github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/redis"
)

const cursorKeyPrefix = "scroll:cursor:"

// cursorCommands is the subset of the Redis API the store needs
type cursorCommands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCursorStore implements providers.CursorStore using Redis
type RedisCursorStore struct {
	cmds cursorCommands
}

// NewRedisCursorStore creates a new Redis cursor store
func NewRedisCursorStore(client *redisclient.Client) providers.CursorStore {
	return &RedisCursorStore{cmds: client.Client()}
}

// Save stores state under cursor for ttl
func (s *RedisCursorStore) Save(ctx context.Context, cursor string, state []byte, ttl time.Duration) error {
	if err := s.cmds.Set(ctx, cursorKeyPrefix+cursor, state, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Load returns the state and renews its ttl in the same round trip
func (s *RedisCursorStore) Load(ctx context.Context, cursor string, ttl time.Duration) ([]byte, error) {
	result, err := s.cmds.GetEx(ctx, cursorKeyPrefix+cursor, ttl).Bytes()
	if err == redis.Nil {
		return nil, providers.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	return result, nil
}

// Delete removes the cursor
func (s *RedisCursorStore) Delete(ctx context.Context, cursor string) error {
	if err := s.cmds.Del(ctx, cursorKeyPrefix+cursor).Err(); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}
