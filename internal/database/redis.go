package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSettings locates the cache server. A non-empty URL replaces Addr,
// Password and DB.
type RedisSettings struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

type RedisDB struct {
	Client *redis.Client
}

var (
	newRedisClient = redis.NewClient
	pingRedis      = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
)

// redisOptions applies the client tuning shared by every deployment. Timeouts
// are short because a cache failure only costs a database read.
func redisOptions(s RedisSettings) (*redis.Options, error) {
	opts := &redis.Options{Addr: s.Addr, Password: s.Password, DB: s.DB}
	if s.URL != "" {
		parsed, err := redis.ParseURL(s.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	}

	opts.MaxRetries = 3
	opts.MinRetryBackoff = 50 * time.Millisecond
	opts.MaxRetryBackoff = 2 * time.Second
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	return opts, nil
}

func NewRedisDB(s RedisSettings) (*RedisDB, error) {
	opts, err := redisOptions(s)
	if err != nil {
		return nil, err
	}
	client := newRedisClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pingRedis(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}
	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// Health reports whether the cache answers a PING.
func (r *RedisDB) Health(ctx context.Context) error {
	return pingRedis(ctx, r.Client)
}
