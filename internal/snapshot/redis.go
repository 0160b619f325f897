package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hkiendev/cartstore/internal/domain"
)

// RedisSink keeps cart snapshots keyed per session in Redis, for deployments
// where the cart client runs inside a shared process serving many sessions.
type RedisSink struct {
	client    *redis.Client
	sessionID string
	baseTTL   time.Duration
}

func NewRedisSink(client *redis.Client, sessionID string) *RedisSink {
	return &RedisSink{
		client:    client,
		sessionID: sessionID,
		baseTTL:   24 * time.Hour,
	}
}

func (r *RedisSink) Save(ctx context.Context, cart *domain.Cart) error {
	if cart == nil {
		return r.Clear(ctx)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(30)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, r.key(), string(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSink) Load(ctx context.Context) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisSink) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisSink) key() string {
	return fmt.Sprintf("cart:snapshot:%s", r.sessionID)
}
