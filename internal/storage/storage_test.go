package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachlan2k/vitrine/internal/config"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "token", "a.b.c"))
	require.NoError(t, b.Set(ctx, "userId", "7"))

	v, err := b.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", v)

	require.NoError(t, b.Set(ctx, "token", "d.e.f"))
	v, err = b.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "d.e.f", v)

	require.NoError(t, b.Delete(ctx, "token", "userId", "never-set"))

	_, err = b.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "userId")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Delete(ctx))
}

func TestMemory(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	b, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "vitrine.db"))
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vitrine.db")

	b, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "carrinho", `[{"productId":"1"}]`))
	require.NoError(t, b.Close())

	b, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer b.Close()

	v, err := b.Get(ctx, "carrinho")
	require.NoError(t, err)
	assert.Equal(t, `[{"productId":"1"}]`, v)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedis(client, "vitrine:")
	defer b.Close()

	exerciseBackend(t, b)

	require.NoError(t, b.Set(context.Background(), "token", "x"))
	assert.True(t, mr.Exists("vitrine:token"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	conf := &config.Config{}
	conf.Storage.Type = "memory"
	b, err := Open(ctx, conf)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	conf.Storage.Type = "sqlite"
	conf.Storage.Path = filepath.Join(t.TempDir(), "open.db")
	b, err = Open(ctx, conf)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, b)
	require.NoError(t, b.Close())

	conf.Storage.Type = "redis"
	conf.Storage.Redis.Addr = mr.Addr()
	b, err = Open(ctx, conf)
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, b)
	require.NoError(t, b.Close())

	conf.Storage.Type = "floppy"
	_, err = Open(ctx, conf)
	assert.Error(t, err)
}
