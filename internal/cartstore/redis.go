package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisAdapter persists registries as JSON values in Redis. Every write also
// publishes the new registry on a per-owner channel so other readers can
// refresh; no merge is attempted (last write wins).
type RedisAdapter struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisAdapter returns an adapter using the given client and TTL.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{R: client, Prefix: "cart", TTL: ttl}
}

func (a *RedisAdapter) key(owner string) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "cart"
	}
	return prefix + ":" + owner
}

func (a *RedisAdapter) channel(owner string) string {
	return a.key(owner) + ":changed"
}

// Get loads the owner's registry, empty when the key is absent.
func (a *RedisAdapter) Get(ctx context.Context, owner string) (Registry, error) {
	if a == nil || a.R == nil {
		return Registry{}, fmt.Errorf("redis cart adapter not configured")
	}
	raw, err := a.R.Get(ctx, a.key(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewRegistry(), nil
		}
		return Registry{}, fmt.Errorf("redis get cart: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return Registry{}, fmt.Errorf("decode cart registry: %w", err)
	}
	reg.ensure()
	return reg, nil
}

// Set stores the registry and publishes the change notification.
func (a *RedisAdapter) Set(ctx context.Context, owner string, reg Registry) error {
	if a == nil || a.R == nil {
		return fmt.Errorf("redis cart adapter not configured")
	}
	raw, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode cart registry: %w", err)
	}
	if err := a.R.Set(ctx, a.key(owner), raw, a.TTL).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	// Change notification is best effort; the write itself already succeeded.
	_ = a.R.Publish(ctx, a.channel(owner), raw).Err()
	return nil
}

// Subscribe streams registry updates for one owner until the context ends.
// The returned cancel function releases the underlying subscription.
func (a *RedisAdapter) Subscribe(ctx context.Context, owner string) (<-chan Registry, func(), error) {
	if a == nil || a.R == nil {
		return nil, nil, fmt.Errorf("redis cart adapter not configured")
	}
	sub := a.R.Subscribe(ctx, a.channel(owner))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe cart changes: %w", err)
	}
	out := make(chan Registry)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var reg Registry
			if err := json.Unmarshal([]byte(msg.Payload), &reg); err != nil {
				continue
			}
			reg.ensure()
			select {
			case out <- reg:
			case <-ctx.Done():
				return
			}
		}
	}()
	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
