package db

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SeqKeyPrefix marks keys whose suffix is an 8-byte big-endian sequence
// number. Redis stores them with the number in decimal so they stay
// readable from redis-cli.
const SeqKeyPrefix = "log:"

// RedisProvider implements IterableProvider for Redis
type RedisProvider struct {
	client *redis.Client
	ctx    context.Context
}

func toRedisKey(key []byte) string {
	if len(key) == len(SeqKeyPrefix)+8 && strings.HasPrefix(string(key), SeqKeyPrefix) {
		seq := binary.BigEndian.Uint64(key[len(SeqKeyPrefix):])
		return SeqKeyPrefix + strconv.FormatUint(seq, 10)
	}
	return string(key)
}

func fromRedisKey(key string) []byte {
	if rest, ok := strings.CutPrefix(key, SeqKeyPrefix); ok {
		if seq, err := strconv.ParseUint(rest, 10, 64); err == nil {
			out := make([]byte, len(SeqKeyPrefix)+8)
			copy(out, SeqKeyPrefix)
			binary.BigEndian.PutUint64(out[len(SeqKeyPrefix):], seq)
			return out
		}
	}
	return []byte(key)
}

// NewRedisProvider connects to address and selects database index dbIndex.
func NewRedisProvider(address string, dbIndex int) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   dbIndex,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", address)
	}

	return &RedisProvider{
		client: client,
		ctx:    ctx,
	}, nil
}

func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, toRedisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "redis get %s", toRedisKey(key))
	}
	return value, nil
}

// GetBatch uses MGET; missing keys are left out of the result.
func (p *RedisProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = toRedisKey(k)
	}
	values, err := p.client.MGet(p.ctx, redisKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}
	for i, v := range values {
		switch s := v.(type) {
		case string:
			result[string(keys[i])] = []byte(s)
		case nil:
		default:
			return nil, fmt.Errorf("redis mget %s: unexpected value type %T", redisKeys[i], v)
		}
	}
	return result, nil
}

func (p *RedisProvider) Put(key, value []byte) error {
	return errors.Wrapf(p.client.Set(p.ctx, toRedisKey(key), value, 0).Err(), "redis set %s", toRedisKey(key))
}

func (p *RedisProvider) Delete(key []byte) error {
	return errors.Wrapf(p.client.Del(p.ctx, toRedisKey(key)).Err(), "redis del %s", toRedisKey(key))
}

func (p *RedisProvider) Has(key []byte) (bool, error) {
	count, err := p.client.Exists(p.ctx, toRedisKey(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis exists %s", toRedisKey(key))
	}
	return count > 0, nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		client: p.client,
		ctx:    p.ctx,
		pipe:   p.client.TxPipeline(),
	}
}

// IteratePrefix walks keys with SCAN. Order is unspecified.
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	pattern := string(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(p.ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return errors.Wrap(err, "redis scan")
		}
		cursor = next
		for _, k := range keys {
			val, err := p.client.Get(p.ctx, k).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return errors.Wrapf(err, "redis get %s", k)
			}
			if !fn(fromRedisKey(k), val) {
				return nil
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// RedisBatch queues writes in a MULTI/EXEC pipeline.
type RedisBatch struct {
	client *redis.Client
	ctx    context.Context
	pipe   redis.Pipeliner
}

func (b *RedisBatch) Put(key, value []byte) {
	b.pipe.Set(b.ctx, toRedisKey(key), value, 0)
}

func (b *RedisBatch) Delete(key []byte) {
	b.pipe.Del(b.ctx, toRedisKey(key))
}

func (b *RedisBatch) Write() error {
	_, err := b.pipe.Exec(b.ctx)
	return errors.Wrap(err, "redis batch exec")
}

func (b *RedisBatch) Reset() {
	b.pipe.Discard()
	b.pipe = b.client.TxPipeline()
}

func (b *RedisBatch) Close() error {
	b.pipe.Discard()
	return nil
}
