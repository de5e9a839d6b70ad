package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"bapmate/internal/model"
)

const (
	// LocationKeyPrefix is the key prefix for a room's location sessions hash.
	LocationKeyPrefix = "location:room:"

	// DefaultLocationTTL bounds how long an idle room keeps its sessions.
	DefaultLocationTTL = 2 * time.Hour
)

// LocationStore keeps one LocationSession per (room, user). Sessions are
// ephemeral and never part of room history.
type LocationStore interface {
	// Put writes the session and refreshes the room's TTL.
	// Pipeline: HSET + EXPIRE
	Put(ctx context.Context, session model.LocationSession) error

	// Get returns the session, or found=false when the user never shared.
	Get(ctx context.Context, roomID, userID string) (session model.LocationSession, found bool, err error)

	// List returns every session in the room.
	List(ctx context.Context, roomID string) ([]model.LocationSession, error)

	// Remove drops one user's session.
	Remove(ctx context.Context, roomID, userID string) error

	// Clear drops every session of a room.
	Clear(ctx context.Context, roomID string) error
}

// RedisLocationStore implements LocationStore with one Redis hash per room.
type RedisLocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocationStore(client *redis.Client, ttl time.Duration) LocationStore {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	return &RedisLocationStore{client: client, ttl: ttl}
}

func locationKey(roomID string) string {
	return LocationKeyPrefix + roomID
}

func (s *RedisLocationStore) Put(ctx context.Context, session model.LocationSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal location session: %w", err)
	}
	key := locationKey(session.RoomID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, session.UserID, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[LocationStore] Put FAILED: room=%s user=%s err=%v", session.RoomID, session.UserID, err)
		return model.Transient(fmt.Errorf("put location session: %w", err))
	}
	return nil
}

func (s *RedisLocationStore) Get(ctx context.Context, roomID, userID string) (model.LocationSession, bool, error) {
	raw, err := s.client.HGet(ctx, locationKey(roomID), userID).Result()
	if err == redis.Nil {
		return model.LocationSession{}, false, nil
	}
	if err != nil {
		return model.LocationSession{}, false, model.Transient(fmt.Errorf("get location session: %w", err))
	}
	var session model.LocationSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return model.LocationSession{}, false, fmt.Errorf("decode location session: %w", err)
	}
	return session, true, nil
}

func (s *RedisLocationStore) List(ctx context.Context, roomID string) ([]model.LocationSession, error) {
	entries, err := s.client.HGetAll(ctx, locationKey(roomID)).Result()
	if err != nil {
		return nil, model.Transient(fmt.Errorf("list location sessions: %w", err))
	}
	sessions := make([]model.LocationSession, 0, len(entries))
	for userID, raw := range entries {
		var session model.LocationSession
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			// skip one corrupt entry rather than failing the whole room
			log.Printf("[LocationStore] List decode error: room=%s user=%s err=%v", roomID, userID, err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *RedisLocationStore) Remove(ctx context.Context, roomID, userID string) error {
	if err := s.client.HDel(ctx, locationKey(roomID), userID).Err(); err != nil {
		return model.Transient(fmt.Errorf("remove location session: %w", err))
	}
	return nil
}

func (s *RedisLocationStore) Clear(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, locationKey(roomID)).Err(); err != nil {
		return model.Transient(fmt.Errorf("clear location sessions: %w", err))
	}
	return nil
}
