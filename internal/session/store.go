package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"instabridge/internal/instagram"
)

// ErrNotStored is returned by Store.Load when no snapshot exists for a token.
var ErrNotStored = errors.New("session not stored")

// Store persists session snapshots by token.
type Store interface {
	Save(ctx context.Context, token string, snap instagram.Snapshot, ttl time.Duration) error
	Load(ctx context.Context, token string) (instagram.Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
}

// redisStore implements Store interface using Redis
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(addr, password string, db int) Store {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewRedisStoreFromClient wraps an existing Redis client.
func NewRedisStoreFromClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

func key(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Save stores the snapshot; a zero ttl keeps it until overwritten.
func (s *redisStore) Save(ctx context.Context, token string, snap instagram.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, key(token), data, ttl).Err()
}

func (s *redisStore) Load(ctx context.Context, token string) (instagram.Snapshot, error) {
	var snap instagram.Snapshot

	data, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, ErrNotStored
	}
	if err != nil {
		return snap, err
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return snap, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
