package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrFetchCancelled is returned by Fetch when a mutation cancelled the
// in-flight read for its key; the result was discarded.
var ErrFetchCancelled = errors.New("client: fetch cancelled by a newer mutation")

// Key 查询键，按段做前缀匹配 ("comments"/"post"/"1" 匹配 "comments"/"post")
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the map key; segments may themselves contain "/" (site filters).
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether p is a segment-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

type entry struct {
	key       Key
	value     any
	stale     bool
	updatedAt time.Time
}

type fetch struct {
	key       Key
	cancel    context.CancelFunc
	cancelled bool
}

// QueryCache 客户端查询缓存。值视为不可变，更新函数需返回新值 (copy-on-write)。
type QueryCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *entry]
	inflight map[string]*fetch
	now      func() time.Time
}

func NewQueryCache(size int) (*QueryCache, error) {
	l, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &QueryCache{entries: l, inflight: map[string]*fetch{}, now: time.Now}, nil
}

// Get returns the cached value and whether it is stale.
func (c *QueryCache) Get(key Key) (value any, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key.id())
	if !ok {
		return nil, false, false
	}
	return e.value, e.stale, true
}

func (c *QueryCache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

func (c *QueryCache) set(key Key, value any) {
	c.entries.Add(key.id(), &entry{key: key, value: value, updatedAt: c.now()})
}

// matching 返回前缀匹配的条目，调用方需持锁
func (c *QueryCache) matching(prefix Key) []*entry {
	var out []*entry
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if ok && e.key.HasPrefix(prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Update applies fn to every entry under prefix. fn returns the replacement
// value, or nil to leave the entry untouched. Returns the number replaced.
func (c *QueryCache) Update(prefix Key, fn func(key Key, value any) any) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.matching(prefix) {
		if v := fn(e.key, e.value); v != nil {
			e.value = v
			e.updatedAt = c.now()
			n++
		}
	}
	return n
}

// Invalidate marks entries under prefix stale so the next Fetch refetches.
func (c *QueryCache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.matching(prefix)
	for _, e := range entries {
		e.stale = true
	}
	return len(entries)
}

// Snapshot 保存前缀下条目的当前值，用于回滚
type Snapshot struct {
	values map[string]*entry
}

func (c *QueryCache) Snapshot(prefixes ...Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{values: map[string]*entry{}}
	for _, p := range prefixes {
		for _, e := range c.matching(p) {
			cp := *e
			s.values[e.key.id()] = &cp
		}
	}
	return s
}

// Restore puts every snapshotted entry back. Entries created after the
// snapshot are left alone.
func (c *QueryCache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range s.values {
		cp := *e
		c.entries.Add(k, &cp)
	}
}

// Cancel aborts in-flight fetches under prefix. Their results are dropped
// so they cannot overwrite an optimistic value.
func (c *QueryCache) Cancel(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, f := range c.inflight {
		if f.key.HasPrefix(prefix) {
			f.cancelled = true
			f.cancel()
			delete(c.inflight, k)
		}
	}
}

// Fetch returns the cached value for key when present and fresh, otherwise
// runs load and stores its result.
func Fetch[T any](ctx context.Context, c *QueryCache, key Key, load func(context.Context) (T, error)) (T, error) {
	if v, stale, ok := c.Get(key); ok && !stale {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	return Refetch(ctx, c, key, load)
}

// Refetch always runs load. A newer fetch or a mutation on the same key
// cancels it and its result is discarded.
func Refetch[T any](ctx context.Context, c *QueryCache, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := &fetch{key: key, cancel: cancel}
	k := key.id()
	c.mu.Lock()
	if prev, ok := c.inflight[k]; ok {
		prev.cancelled = true
		prev.cancel()
	}
	c.inflight[k] = f
	c.mu.Unlock()

	v, err := load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[k] == f {
		delete(c.inflight, k)
	}
	if f.cancelled {
		return zero, ErrFetchCancelled
	}
	if err != nil {
		return zero, err
	}
	c.set(key, v)
	return v, nil
}
