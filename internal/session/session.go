// Package session stores opaque server-side sessions in Redis. Sessions back
// the cookie login flow; JWT bearer tokens work without any server state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CookieName is the session cookie issued on login.
const CookieName = "nutreterra_session"

const keyPrefix = "session:"

var ErrNotFound = errors.New("session not found")

// Data is what a session ID resolves to.
type Data struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Create stores the session data under a fresh random ID and returns the ID.
func (s *Store) Create(ctx context.Context, data Data) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	id := hex.EncodeToString(buf)

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+id, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

// Get resolves a session ID and refreshes its TTL (sliding expiry).
func (s *Store) Get(ctx context.Context, id string) (Data, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Data{}, ErrNotFound
		}
		return Data{}, fmt.Errorf("load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return Data{}, fmt.Errorf("decode session: %w", err)
	}

	// Best effort; a failed refresh just means the session expires on schedule.
	s.rdb.Expire(ctx, keyPrefix+id, s.ttl)

	return data, nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}
