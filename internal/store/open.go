package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/redis"
)

// Pinger is implemented by backends that depend on a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendPebble:
		return OpenPebble(cfg.Pebble.Dir, cfg.Pebble.Sync, nil)
	case config.BackendPostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s := NewPostgres(client)
		if err := s.Migrate(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("migrating postgres store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
