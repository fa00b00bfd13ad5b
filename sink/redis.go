package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ConnGetter is satisfied by *redis.Pool.
type ConnGetter interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// RedisStore appends records as JSON to the list <prefix>:<doc id>.
type RedisStore struct {
	pool   ConnGetter
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores through pool. With a ttl above zero every list
// expires ttl after its last write.
func NewRedisStore(pool ConnGetter, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cardx"
	}
	return &RedisStore{pool: pool, prefix: prefix, ttl: ttl}
}

// NewRedisPool dials addr lazily, "redis://" URLs are accepted as well.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			if strings.HasPrefix(addr, "redis://") {
				return redis.DialURL(addr)
			}
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func (s *RedisStore) Key(docID string) string {
	return s.prefix + ":" + docID
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer conn.Close()

	key := s.Key(rec.DocID)
	if _, err := redis.Int(conn.Do("RPUSH", key, b)); err != nil {
		return fmt.Errorf("redis: rpush %s: %w", key, err)
	}
	if s.ttl > 0 {
		if _, err := conn.Do("EXPIRE", key, int64(s.ttl/time.Second)); err != nil {
			return fmt.Errorf("redis: expire %s: %w", key, err)
		}
	}
	return nil
}

// Records reads back all records of a document.
func (s *RedisStore) Records(ctx context.Context, docID string) ([]Record, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	defer conn.Close()

	values, err := redis.ByteSlices(conn.Do("LRANGE", s.Key(docID), 0, -1))
	if err != nil {
		return nil, fmt.Errorf("redis: lrange: %w", err)
	}
	recs := make([]Record, 0, len(values))
	for _, v := range values {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
