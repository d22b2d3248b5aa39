package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"game-party/pkg/config"
	redisclient "game-party/pkg/redis"
)

// Store persists rooms by join code. Rooms are hot, short-lived session
// state, so they live in Redis as JSON values with a session TTL.
type Store interface {
	Load(ctx context.Context, joinCode string) (*Room, error)
	Save(ctx context.Context, room *Room) error
	Delete(ctx context.Context, joinCode string) error
}

type redisStore struct {
	redis *redisclient.Client
	ttl   time.Duration
}

// NewStore creates a Redis-backed room store
func NewStore(client *redisclient.Client, cfg *config.RoomConfig) Store {
	return &redisStore{redis: client, ttl: cfg.SessionTTL}
}

func stateKey(joinCode string) string {
	return fmt.Sprintf("room:%s:state", joinCode)
}

func (s *redisStore) Load(ctx context.Context, joinCode string) (*Room, error) {
	var room Room
	err := s.redis.Get(ctx, stateKey(joinCode), &room)
	if err != nil {
		if errors.Is(err, redisclient.ErrKeyNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to load room %s: %w", joinCode, err)
	}
	return &room, nil
}

func (s *redisStore) Save(ctx context.Context, room *Room) error {
	if err := s.redis.Set(ctx, stateKey(room.JoinCode), room, s.ttl); err != nil {
		return fmt.Errorf("failed to save room %s: %w", room.JoinCode, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, joinCode string) error {
	if err := s.redis.Delete(ctx, stateKey(joinCode)); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", joinCode, err)
	}
	return nil
}
