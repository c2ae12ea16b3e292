package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Replay enforces single use of (kind, value) pairs across instances with
// SET NX.
type Replay struct {
	client *redis.Client
	prefix string
}

func NewReplay(client *redis.Client, prefix string) *Replay {
	if prefix == "" {
		prefix = "replay:"
	}
	return &Replay{client: client, prefix: prefix}
}

func (r *Replay) Use(ctx context.Context, kind, value string, ttl time.Duration) (bool, error) {
	key, err := r.key(kind, value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

func (r *Replay) Release(ctx context.Context, kind, value string) error {
	key, err := r.key(kind, value)
	if err != nil {
		return err
	}
	return r.client.Del(ctx, key).Err()
}

func (r *Replay) key(kind, value string) (string, error) {
	kind = strings.TrimSpace(strings.ToLower(kind))
	value = strings.TrimSpace(value)
	if kind == "" || value == "" {
		return "", fmt.Errorf("replay: kind and value are required")
	}
	return r.prefix + kind + ":" + value, nil
}
