package checkpoint

import (
	"context"
	"time"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/redis"
)

// RedisStore keeps the checkpoint under a single key, one checkpoint per run
// id, so parallel runs against the same Redis do not clobber each other.
type RedisStore struct {
	client redis.Client
	key    string
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisStore creates a Redis-backed checkpoint store. A zero ttl keeps
// checkpoints until overwritten.
func NewRedisStore(client redis.Client, key string, ttl time.Duration, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl, logger: log}
}

// Save overwrites the checkpoint under the store's key.
func (s *RedisStore) Save(ctx context.Context, checkpoint *checkpointv1.Checkpoint) error {
	data, err := Encode(checkpoint)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, string(data), s.ttl); err != nil {
		return errors.Wrap(err, errors.CheckpointStoreError, "store checkpoint under %s", s.key)
	}

	s.logger.Debug("checkpoint saved",
		logger.Field{Key: "key", Value: s.key},
		logger.Field{Key: "bytes", Value: len(data)},
	)
	return nil
}

// Load reads the checkpoint, or returns nil when the key is absent.
func (s *RedisStore) Load(ctx context.Context) (*checkpointv1.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CheckpointStoreError, "load checkpoint from %s", s.key)
	}
	if data == "" {
		return nil, nil
	}
	return Decode([]byte(data))
}
