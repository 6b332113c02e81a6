package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent or past its TTL.
var ErrMiss = errors.New("cache: miss")

// SessionState is the cached liveness snapshot of a session. It is a
// best-effort accelerator: a miss or any ambiguity falls back to the
// session repository, which is the writer of record.
type SessionState struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

func resultKey(tokenID uuid.UUID) string { return "refresh:result:" + tokenID.String() }

// RedisStore backs the session-state cache and the refresh idempotency
// stash with Redis.
type RedisStore struct {
	client redis.UniversalClient
	// maxTTL caps every session-state entry so a cached state can
	// never outlive the access token it backs.
	maxTTL time.Duration
}

func NewRedisStore(client redis.UniversalClient, maxTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, maxTTL: maxTTL}
}

func (s *RedisStore) Get(ctx context.Context, sessionID uuid.UUID) (SessionState, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionState{}, ErrMiss
		}
		return SessionState{}, fmt.Errorf("load session state: %w", err)
	}
	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return SessionState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, sessionID uuid.UUID, state SessionState, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate session state: %w", err)
	}
	return nil
}

// PutResult stashes a rotation result under the consumed token id for
// the idempotency window.
func (s *RedisStore) PutResult(ctx context.Context, tokenID uuid.UUID, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode refresh result: %w", err)
	}
	if err := s.client.Set(ctx, resultKey(tokenID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist refresh result: %w", err)
	}
	return nil
}

func (s *RedisStore) GetResult(ctx context.Context, tokenID uuid.UUID, dest any) error {
	raw, err := s.client.Get(ctx, resultKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("load refresh result: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode refresh result: %w", err)
	}
	return nil
}

// MemoryStore is an in-process implementation of the same surface for
// tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	maxTTL  time.Duration
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryStore(maxTTL time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), maxTTL: maxTTL}
}

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.payload, true
}

func (s *MemoryStore) set(key string, payload []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID uuid.UUID) (SessionState, error) {
	raw, ok := s.get(sessionKey(sessionID))
	if !ok {
		return SessionState{}, ErrMiss
	}
	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

func (s *MemoryStore) Put(ctx context.Context, sessionID uuid.UUID, state SessionState, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.set(sessionKey(sessionID), payload, ttl)
	return nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey(sessionID))
	return nil
}

func (s *MemoryStore) PutResult(ctx context.Context, tokenID uuid.UUID, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(resultKey(tokenID), payload, ttl)
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, tokenID uuid.UUID, dest any) error {
	raw, ok := s.get(resultKey(tokenID))
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(raw, dest)
}
