package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/familyhub/core/internal/ports"
)

// memoryVerificationRepository keeps pending codes in a map with their
// expiry. Good enough for single-process deployments; the Redis
// implementation below takes over when a cluster runs more than one
// instance.
type memoryVerificationRepository struct {
	mu    sync.Mutex
	codes map[string]ports.VerificationCode
}

// NewMemoryVerificationRepository creates an in-process code store.
func NewMemoryVerificationRepository() ports.VerificationRepository {
	return &memoryVerificationRepository{codes: map[string]ports.VerificationCode{}}
}

func (r *memoryVerificationRepository) Put(ctx context.Context, email string, code ports.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.codes[strings.ToLower(email)] = code
	return nil
}

func (r *memoryVerificationRepository) Get(ctx context.Context, email string) (*ports.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[strings.ToLower(email)]
	if !ok || code.Expired() {
		return nil, nil
	}
	return &code, nil
}

func (r *memoryVerificationRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, strings.ToLower(email))
	return nil
}

func (r *memoryVerificationRepository) sweepLocked() {
	for email, code := range r.codes {
		if code.Expired() {
			delete(r.codes, email)
		}
	}
}

// redisVerificationRepository stores pending codes in Redis with a TTL
// matching the challenge expiry, so stale codes disappear on their own.
type redisVerificationRepository struct {
	client *redis.Client
}

// NewRedisVerificationRepository creates a Redis-backed code store.
func NewRedisVerificationRepository(client *redis.Client) ports.VerificationRepository {
	return &redisVerificationRepository{client: client}
}

func verificationKey(email string) string {
	return "verify:" + strings.ToLower(email)
}

func (r *redisVerificationRepository) Put(ctx context.Context, email string, code ports.VerificationCode) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to encode verification code: %w", err)
	}
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, verificationKey(email), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

func (r *redisVerificationRepository) Get(ctx context.Context, email string) (*ports.VerificationCode, error) {
	raw, err := r.client.Get(ctx, verificationKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read verification code: %w", err)
	}
	var code ports.VerificationCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("failed to decode verification code: %w", err)
	}
	if code.Expired() {
		return nil, nil
	}
	return &code, nil
}

func (r *redisVerificationRepository) Delete(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, verificationKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}
