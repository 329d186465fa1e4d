package redis

import (
	"context"
	"time"

	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	v9 "github.com/redis/go-redis/v9"
)

type client struct {
	logger  *logger.Logger
	config  *Config
	cmdable *v9.Client
}

// NewClient creates a new Redis client with the provided logger and configuration.
func NewClient(log *logger.Logger, config *Config) Client {
	return &client{
		logger: log,
		config: config,
	}
}

func (c *client) Connect(ctx context.Context) error {
	if c.config == nil {
		return errors.New(errors.ConfigError, "redis config is nil")
	}
	if len(c.config.Addrs) == 0 {
		return errors.New(errors.ConfigError, "redis addresses are empty")
	}

	c.cmdable = v9.NewClient(&v9.Options{
		Addr:            c.config.Addrs[0],
		Username:        c.config.Username,
		Password:        c.config.Password,
		DB:              c.config.DB,
		DialTimeout:     c.config.ConnectTimeout,
		MaxRetries:      c.config.MaxRetries,
		MinRetryBackoff: c.config.MinRetryBackoff,
		MaxRetryBackoff: c.config.MaxRetryBackoff,
		PoolSize:        c.config.PoolSize,
	})

	if err := c.Ping(ctx); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Redis connected", logger.Field{
		Key:   "addr",
		Value: c.config.Addrs[0],
	})
	return nil
}

func (c *client) Disconnect(ctx context.Context) error {
	if c.cmdable == nil {
		return nil
	}
	if err := c.cmdable.Close(); err != nil {
		return errors.NewTracer("redis_disconnect_error").Wrap(err)
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	if err := c.cmdable.Ping(ctx).Err(); err != nil {
		return errors.NewTracer("redis_ping_error").Wrap(err)
	}
	return nil
}

func (c *client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cmdable.Get(ctx, c.config.PrefixKey+key).Result()
	if err != nil {
		if err == v9.Nil {
			return "", nil
		}
		return "", errors.NewTracer("redis_get_error").Wrap(err)
	}
	return val, nil
}

func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.cmdable.Set(ctx, c.config.PrefixKey+key, value, expiration).Err(); err != nil {
		return errors.NewTracer("redis_set_error").Wrap(err)
	}
	return nil
}

func (c *client) Del(ctx context.Context, keys ...string) (int64, error) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.config.PrefixKey + key
	}
	deleted, err := c.cmdable.Del(ctx, prefixed...).Result()
	if err != nil {
		return 0, errors.NewTracer("redis_del_error").Wrap(err)
	}
	return deleted, nil
}
