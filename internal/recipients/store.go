// Package recipients remembers the addresses reports were recently sent to,
// most recent first.
package recipients

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

// DefaultLimit is the number of addresses kept
const DefaultLimit = 8

// DefaultKey is the Redis list holding the addresses
const DefaultKey = "vanguard:recent_recipients"

// Store is a bounded, de-duplicated, most-recent-first address list
type Store interface {
	// Remember moves address to the front, dropping the oldest entry when
	// the list is full. Blank addresses are ignored.
	Remember(ctx context.Context, address string) error
	// List returns the addresses, most recent first
	List(ctx context.Context) ([]string, error)
}

func normalize(address string) string {
	return strings.TrimSpace(address)
}

// MemoryStore keeps the list in process
type MemoryStore struct {
	mu    sync.Mutex
	limit int
	items []string
}

// NewMemoryStore creates an in-process store holding at most limit addresses
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Remember(_ context.Context, address string) error {
	address = normalize(address)
	if address == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, s.limit)
	next = append(next, address)
	for _, a := range s.items {
		if a != address && len(next) < s.limit {
			next = append(next, a)
		}
	}
	s.items = next
	return nil
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.items...), nil
}

// RedisStore keeps the list in a Redis list so it survives restarts and is
// shared between processes
type RedisStore struct {
	client *redis.Client
	key    string
	limit  int
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, key string, limit int) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisStore{client: client, key: key, limit: limit}
}

// Dial connects to the configured server and verifies it answers PING
func Dial(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewInternalError("failed to connect to Redis").WithCause(err)
	}
	return client, nil
}

// Ping reports whether Redis still answers
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// PoolStats returns the connection pool counters
func (s *RedisStore) PoolStats() *redis.PoolStats {
	return s.client.PoolStats()
}

func (s *RedisStore) Remember(ctx context.Context, address string) error {
	address = normalize(address)
	if address == "" {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, s.key, 0, address)
	pipe.LPush(ctx, s.key, address)
	pipe.LTrim(ctx, s.key, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewInternalError("failed to remember recipient").WithCause(err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	items, err := s.client.LRange(ctx, s.key, 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, errors.NewInternalError("failed to list recipients").WithCause(err)
	}
	return items, nil
}

// New returns a Redis store when Redis is enabled and reachable, otherwise
// an in-memory store. The returned close func releases the Redis connection.
func New(cfg *config.Config, logger *zap.Logger) (Store, func() error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	limit := cfg.Report.RecentRecipients

	if !cfg.Redis.Enabled {
		return NewMemoryStore(limit), noop
	}

	client, err := Dial(context.Background(), &cfg.Redis)
	if err != nil {
		logger.Warn("recent recipients fall back to memory",
			zap.String("redis_addr", cfg.RedisAddr()),
			zap.Error(err))
		return NewMemoryStore(limit), noop
	}
	return NewRedisStore(client, DefaultKey, limit), client.Close
}
