package token

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RevocationList remembers revoked token ids until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryList keeps revocations in process. It is enough for a single instance.
type MemoryList struct {
	entries *cache.Cache
}

func NewMemoryList() *MemoryList {
	return &MemoryList{entries: cache.New(time.Hour, 10*time.Minute)}
}

func (l *MemoryList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	l.entries.Set(jti, struct{}{}, ttl)
	return nil
}

func (l *MemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, found := l.entries.Get(jti)
	return found, nil
}

// RedisList shares revocations between instances.
type RedisList struct {
	client *redis.Client
	prefix string
}

func NewRedisList(client *redis.Client, prefix string) *RedisList {
	return &RedisList{client: client, prefix: prefix}
}

func (l *RedisList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, l.prefix+jti, "1", ttl).Err()
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := l.client.Get(ctx, l.prefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
