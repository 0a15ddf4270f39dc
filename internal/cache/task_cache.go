package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey = "tasks:list:ver"
	pageTTL    = 30 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// TaskListCache keeps serialized task-list pages in redis. Pages are keyed
// under a version number that every task mutation bumps, so a bump
// invalidates all cached pages at once and rows can never disagree with
// their total. A nil cache is valid and disables caching.
type TaskListCache struct {
	rdb *redis.Client
}

func New(cfg Config) *TaskListCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &TaskListCache{rdb: rdb}
}

func (c *TaskListCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *TaskListCache) Close() error {
	return c.rdb.Close()
}

// PageKey derives the cache key for one list page. scope is "all" for
// admins or "owner:<id>" for regular users.
func (c *TaskListCache) PageKey(ctx context.Context, scope string, offset, limit int) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey).Result()

	if err != nil {
		if err != redis.Nil {
			return "", err
		}
		ver = "0"
	}

	return "tasks:list:v" + ver +
		":scope=" + scope +
		":offset=" + strconv.Itoa(offset) +
		":limit=" + strconv.Itoa(limit), nil
}

func (c *TaskListCache) GetPage(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	payload, err := c.rdb.Get(ctx, key).Bytes()

	if err != nil {
		return nil, false
	}

	return payload, true
}

func (c *TaskListCache) SetPage(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}

	_ = c.rdb.Set(ctx, key, payload, pageTTL).Err()
}

// Invalidate bumps the version so every cached page goes stale. Called
// after any task create/update/delete. Stale pages expire via their TTL.
func (c *TaskListCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}

	_ = c.rdb.Incr(ctx, versionKey).Err()
}
