// Package redisconn owns the redis connections, one client per logical
// namespace. The KV store is the single authority for shared state, so
// every service talks to the same databases with the same numbering.
package redisconn

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
)

// Pools groups the per-namespace clients a service needs.
type Pools struct {
	Matchmaking  *redis.Client
	EventQueue   *redis.Client
	Confirmation *redis.Client
	Rooms        *redis.Client
}

// Dial connects every namespace and verifies the server is reachable.
func Dial(ctx context.Context, cfg *config.Config) (*Pools, error) {
	p := &Pools{
		Matchmaking:  newClient(cfg, config.MatchmakingDB),
		EventQueue:   newClient(cfg, config.EventQueueDB),
		Confirmation: newClient(cfg, config.ConfirmationDB),
		Rooms:        newClient(cfg, config.RoomsDB),
	}

	if err := p.Matchmaking.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.RedisAddr(), err)
	}

	// Expired heartbeat keys must fire keyevent notifications for the
	// observer. Best effort: some deployments manage this server-side
	// and test servers reject CONFIG SET entirely.
	p.Rooms.ConfigSet(ctx, "notify-keyspace-events", "Ex")

	return p, nil
}

// Close tears down all namespace clients.
func (p *Pools) Close() error {
	var firstErr error
	for _, c := range []*redis.Client{p.Matchmaking, p.EventQueue, p.Confirmation, p.Rooms} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newClient(cfg *config.Config, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
		DB:   db,
	})
}
