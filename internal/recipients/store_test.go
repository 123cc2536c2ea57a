package recipients

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
)

func redisConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port, PoolSize: 2}
}

func newRedisStore(t *testing.T, limit int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)

	client, err := Dial(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "", limit), mr
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(3) },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t, 3)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			got, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			for _, addr := range []string{"a@example.com", "b@example.com", " a@example.com ", "", "c@example.com", "d@example.com"} {
				require.NoError(t, s.Remember(ctx, addr))
			}

			got, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"d@example.com", "c@example.com", "a@example.com"}, got)
		})
	}
}

func TestRedisStore_Persists(t *testing.T) {
	s, mr := newRedisStore(t, DefaultLimit)
	ctx := context.Background()

	require.NoError(t, s.Remember(ctx, "client@example.com"))

	items, err := mr.List(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"client@example.com"}, items)
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("disabled uses memory", func(t *testing.T) {
		s, closeFn := New(&config.Config{Report: config.ReportConfig{RecentRecipients: 4}}, logger)
		defer closeFn()
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("unreachable falls back to memory", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{Redis: redisConfig(t, mr)}
		mr.Close()

		s, closeFn := New(cfg, logger)
		defer closeFn()
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("enabled uses redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, closeFn := New(&config.Config{Redis: redisConfig(t, mr)}, logger)
		defer closeFn()
		assert.IsType(t, &RedisStore{}, s)
	})
}

func TestRedisStore_Ping(t *testing.T) {
	s, mr := newRedisStore(t, DefaultLimit)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	assert.NotNil(t, s.PoolStats())

	mr.Close()
	assert.Error(t, s.Ping(ctx))
}

func TestDial_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)
	mr.Close()

	client, err := Dial(context.Background(), &cfg)
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
