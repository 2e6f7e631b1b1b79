// Package cache 读多写少的二进制数据缓存（目前只有头像）
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache nil 或未配置 redis 时退化为直接回源
type Cache struct {
	RDB    *redis.Client
	prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int, prefix string) *Cache {
	return &Cache{
		RDB:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		prefix: prefix,
	}
}

func (c *Cache) key(k string) string { return c.prefix + k }

// verKey 每次 Delete 自增；回源期间版本变了就不回填
func (c *Cache) verKey(k string) string { return c.prefix + "ver:" + k }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil || c.RDB == nil {
		return load(ctx)
	}
	k := c.key(key)
	// 先读缓存
	if b, err := c.RDB.Get(ctx, k).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(k, func() (any, error) {
		ver, verr := c.RDB.Get(ctx, c.verKey(key)).Result()
		if verr != nil && verr != redis.Nil {
			// redis 不可用，只回源不回填
			return load(ctx)
		}
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		c.fill(ctx, key, ver, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// fill 在 WATCH 下比较版本，期间有 Delete 则放弃写入
func (c *Cache) fill(ctx context.Context, key, ver string, b []byte, ttl time.Duration) {
	vk := c.verKey(key)
	_ = c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != ver {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.key(key), b, ttl)
			return nil
		})
		return err
	}, vk)
}

// Delete 写路径调用；redis 不可用时返回错误由调用方决定是否忽略
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.RDB == nil {
		return nil
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.verKey(key))
		p.Del(ctx, c.key(key))
		return nil
	})
	return err
}

func (c *Cache) Close() error {
	if c == nil || c.RDB == nil {
		return nil
	}
	return c.RDB.Close()
}
