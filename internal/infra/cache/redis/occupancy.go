package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"habita/internal/app/dto"
	"habita/internal/app/policies"
)

const (
	occupancyPrefix  = "habita:occupied:"
	generationPrefix = "habita:occupied-gen:"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// OccupancyCache keeps rendered occupied-date lists. The TTL bounds staleness if an
// invalidation event is lost.
type OccupancyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOccupancyCache(client *redis.Client, ttl time.Duration) *OccupancyCache {
	return &OccupancyCache{client: client, ttl: ttl}
}

func (c *OccupancyCache) Get(ctx context.Context, propertyID string) (dto.OccupiedDates, bool, error) {
	data, err := c.client.Get(ctx, Key(propertyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return dto.OccupiedDates{}, false, nil
	}
	if err != nil {
		return dto.OccupiedDates{}, false, err
	}
	var out dto.OccupiedDates
	if err := json.Unmarshal(data, &out); err != nil {
		// a corrupt entry is a miss; the next Set overwrites it
		return dto.OccupiedDates{}, false, nil
	}
	return out, true, nil
}

func (c *OccupancyCache) Generation(ctx context.Context, propertyID string) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(propertyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set writes value only if the generation key still holds generation. A concurrent
// Invalidate aborts the transaction and the value is dropped.
func (c *OccupancyCache) Set(ctx context.Context, propertyID string, generation int64, value dto.OccupiedDates) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	genKey := GenerationKey(propertyID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(propertyID), b, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *OccupancyCache) Invalidate(ctx context.Context, propertyID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(propertyID))
		pipe.Del(ctx, Key(propertyID))
		return nil
	})
	return err
}

func (c *OccupancyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func Key(propertyID string) string {
	return occupancyPrefix + propertyID
}

func GenerationKey(propertyID string) string {
	return generationPrefix + propertyID
}

var _ policies.OccupancyCache = (*OccupancyCache)(nil)
