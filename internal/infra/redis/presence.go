package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks live session codes in Redis so operators can inspect them.
// The in-process registry map stays authoritative; these keys are advisory
// and expire on their own if the process dies.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Mark(ctx context.Context, code string) error {
	return p.client.Set(ctx, p.key(code), "1", p.ttl).Err()
}

func (p *Presence) Clear(ctx context.Context, code string) error {
	return p.client.Del(ctx, p.key(code)).Err()
}

func (p *Presence) key(code string) string {
	return "session:live:" + code
}
