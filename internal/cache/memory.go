package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// item 包装缓存数据和过期时间
type item struct {
	data      []byte
	expiresAt time.Time
}

// Memory 进程内 LRU 缓存，带 TTL
type Memory struct {
	lruCache *lru.Cache[string, item]
	now      func() time.Time
	incrMu   sync.Mutex
}

// NewMemory 创建容量为 size 的 LRU 缓存
func NewMemory(size int) (*Memory, error) {
	l, err := lru.New[string, item](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Memory{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，ttl <= 0 表示不过期
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{data: value}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.lruCache.Add(key, it)
	return nil
}

// Get 获取缓存，不存在或已过期返回 false
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false, nil
	}

	if !val.expiresAt.IsZero() && c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return nil, false, nil
	}

	return val.data, true, nil
}

// Delete 删除指定缓存
func (c *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lruCache.Remove(k)
	}
	return nil
}

// Incr 计数器不过期，与普通条目一样参与 LRU 淘汰
func (c *Memory) Incr(ctx context.Context, key string) (int64, error) {
	c.incrMu.Lock()
	defer c.incrMu.Unlock()

	var n int64
	if raw, ok, _ := c.Get(ctx, key); ok {
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache key %s is not a counter: %w", key, err)
		}
		n = v
	}
	n++
	c.lruCache.Add(key, item{data: []byte(strconv.FormatInt(n, 10))})
	return n, nil
}

// Len returns the number of live and not yet evicted entries.
func (c *Memory) Len() int {
	return c.lruCache.Len()
}
