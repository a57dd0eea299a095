// Package storage is the durable key/value surface the client persists its state to:
// the session token, the user id and the serialised cart.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lachlan2k/vitrine/internal/config"
)

var ErrNotFound = errors.New("key not found")

// Backend is last-writer-wins string storage. A single client is the only expected writer.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func Open(ctx context.Context, conf *config.Config) (Backend, error) {
	switch conf.Storage.Type {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, conf.Storage.Path)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     conf.Storage.Redis.Addr,
			Password: conf.Storage.Redis.Password,
			DB:       conf.Storage.Redis.DB,
			Prefix:   conf.Storage.Redis.Prefix,
		})
	}

	return nil, fmt.Errorf("unknown storage type %q", conf.Storage.Type)
}
