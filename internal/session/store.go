package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"catalog-bff/internal/models"

	"github.com/redis/go-redis/v9"
)

// Store persists the logged-in user of a session.
type Store interface {
	Save(ctx context.Context, id string, user *models.User, ttl time.Duration) error
	// Load returns (nil, nil) when the session has no persisted user.
	Load(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	user      models.User
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. A zero ttl never expires.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, id string, user *models.User, ttl time.Duration) error {
	if user == nil {
		return fmt.Errorf("save session %s: nil user", id)
	}
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[id] = memoryEntry{user: *user, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return nil, nil
	}
	u := e.user
	return &u, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// RedisStore keeps sessions as JSON values under prefix+id.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, id string, user *models.User, ttl time.Duration) error {
	if user == nil {
		return fmt.Errorf("save session %s: nil user", id)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal session user: %w", err)
	}
	return s.client.Set(ctx, s.key(id), data, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, id string) (*models.User, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal(val, &user); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &user, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
