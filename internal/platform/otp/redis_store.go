package otp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	codeField     = "code"
	attemptsField = "attempts"
)

// incrAttempts bumps the counter only while the code hash is alive, so an
// expired code is never recreated without a TTL.
var incrAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

// RedisStore keeps codes in a hash per phone with the code TTL.
type RedisStore struct {
	c      *redis.Client
	prefix string
}

func NewRedisStore(c *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "clinichub:otp:"
	}
	return &RedisStore{c: c, prefix: prefix}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) codeKey(phone string) string     { return s.prefix + "code:" + phone }
func (s *RedisStore) verifiedKey(phone string) string { return s.prefix + "verified:" + phone }

func (s *RedisStore) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	key := s.codeKey(phone)
	_, err := s.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, codeField, code, attemptsField, 0)
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, phone string) (Entry, error) {
	vals, err := s.c.HGetAll(ctx, s.codeKey(phone)).Result()
	if err != nil {
		return Entry{}, err
	}
	code, ok := vals[codeField]
	if !ok || code == "" {
		return Entry{}, ErrNotFound
	}
	attempts, _ := strconv.Atoi(vals[attemptsField])
	return Entry{Code: code, Attempts: attempts}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrAttempts.Run(ctx, s.c, []string{s.codeKey(phone)}, attemptsField).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.c.Del(ctx, s.codeKey(phone)).Err()
}

func (s *RedisStore) MarkVerified(ctx context.Context, phone string, ttl time.Duration) error {
	return s.c.Set(ctx, s.verifiedKey(phone), "1", ttl).Err()
}

func (s *RedisStore) ConsumeVerified(ctx context.Context, phone string) (bool, error) {
	n, err := s.c.Del(ctx, s.verifiedKey(phone)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n == 1, nil
}
