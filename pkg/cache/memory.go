package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

const defaultMemoryTTL = 24 * time.Hour

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool { return now.After(e.expireAt) }

// MemoryCache is the single-process Service used when Redis is not configured.
// Values are evicted least recently used first once MaxSize is reached. Run
// locks live in their own table and are never evicted.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	lru     *list.List
	items   map[string]*list.Element
	locks   map[string]time.Time

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		maxSize: cfg.MaxSize,
		lru:     list.New(),
		items:   make(map[string]*list.Element),
		locks:   make(map[string]time.Time),
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.sweepLoop()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}
	expireAt := time.Now().Add(expiration)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expireAt = data, expireAt
		mc.lru.MoveToFront(el)
		return nil
	}
	for mc.lru.Len() >= mc.maxSize {
		mc.remove(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(&memoryEntry{key: key, value: data, expireAt: expireAt})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.items[key]
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	e := el.Value.(*memoryEntry)
	if e.expired(time.Now()) {
		mc.remove(el)
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.lru.MoveToFront(el)
	data := e.value
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.remove(el)
		}
		delete(mc.locks, key)
	}
	return nil
}

// DeleteByPattern removes cached values whose key matches a glob such as
// "features:q:*". Locks are left alone.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key, el := range mc.items {
		if ok, _ := path.Match(pattern, key); ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok && !el.Value.(*memoryEntry).expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if until, held := mc.locks[key]; held && now.Before(until) {
		return false, nil
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	mc.locks[key] = now.Add(ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mu.Lock()
	delete(mc.locks, key)
	mc.mu.Unlock()
	return nil
}

// remove must be called with mu held.
func (mc *MemoryCache) remove(el *list.Element) {
	if el == nil {
		return
	}
	mc.lru.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) sweepLoop() {
	for {
		select {
		case <-mc.done:
			return
		case now := <-mc.ticker.C:
			mc.sweep(now)
		}
	}
}

func (mc *MemoryCache) sweep(now time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for el := mc.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).expired(now) {
			mc.remove(el)
		}
		el = prev
	}
	for key, until := range mc.locks {
		if !now.Before(until) {
			delete(mc.locks, key)
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}

var _ Service = (*MemoryCache)(nil)
