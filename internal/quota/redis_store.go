package quota

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counters live in day buckets, so a new UTC day starts from zero.
var reserveScript = redis.NewScript(`
local m = tonumber(redis.call('GET', KEYS[1]) or '0')
local t = tonumber(redis.call('GET', KEYS[2]) or '0')
if m >= tonumber(ARGV[1]) or t >= tonumber(ARGV[2]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
redis.call('EXPIRE', KEYS[2], ARGV[3])
return 1
`)

type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "quota", ttl: 48 * time.Hour, now: time.Now}
}

func (s *RedisStore) day() string { return s.now().UTC().Format("2006-01-02") }

// Model counters sit under their own segment so no model name can alias the
// combined counter.
func (s *RedisStore) modelPrefix(day string) string     { return s.prefix + ":" + day + ":m:" }
func (s *RedisStore) modelKey(day, model string) string { return s.modelPrefix(day) + model }
func (s *RedisStore) totalKey(day string) string        { return s.prefix + ":" + day + ":total" }

func (s *RedisStore) Reserve(ctx context.Context, model string, modelLimit, totalLimit int) (bool, error) {
	day := s.day()
	n, err := reserveScript.Run(ctx, s.rdb,
		[]string{s.modelKey(day, model), s.totalKey(day)},
		modelLimit, totalLimit, int(s.ttl.Seconds()),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Usage(ctx context.Context) (Usage, error) {
	day := s.day()
	u := Usage{Models: map[string]int{}}

	total, err := s.rdb.Get(ctx, s.totalKey(day)).Int()
	if err != nil && err != redis.Nil {
		return Usage{}, err
	}
	u.Total = total

	prefix := s.modelPrefix(day)
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		v, err := s.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Usage{}, err
		}
		n, _ := strconv.Atoi(v)
		u.Models[strings.TrimPrefix(key, prefix)] = n
	}
	if err := iter.Err(); err != nil {
		return Usage{}, err
	}
	return u, nil
}
