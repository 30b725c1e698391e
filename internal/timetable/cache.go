package timetable

import (
	"context"
	"sync"
	"time"
)

// Key は時刻表キャッシュのキー。(出発駅, 到着駅, 日付, 照会時刻)の組で一意。
type Key struct {
	Origin      int
	Destination int
	Date        string
	Hour        string
}

// CacheMetrics はキャッシュのヒット/ミスを記録するインターフェース。
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Stats はキャッシュの利用統計を表す。
type Stats struct {
	Size     int           `json:"size"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl_ns"`
	Hits     uint64        `json:"hits"`
	Misses   uint64        `json:"misses"`
}

// cacheEntry はキャッシュ1件の状態を保持する。
// doneがfalseの間はフェッチ実行中で、readyのcloseで完了が通知される。
type cacheEntry struct {
	ready chan struct{}
	done  bool

	value     *timetableResponse
	err       error
	fetchedAt time.Time
	lastUsed  time.Time
}

// Cache は時刻表取得の容量・時間制限付きリードスルーキャッシュ。
// 同一キーへの同時アクセスはフェッチを1回に集約し、後続は勝者の結果を再利用する
// （single-flight）。エラーはキャッシュせず、次回アクセスで再試行される。
// 並行アクセスに対して安全。
type Cache struct {
	ttl      time.Duration
	capacity int
	metrics  CacheMetrics

	mu      sync.Mutex
	entries map[Key]*cacheEntry
	hits    uint64
	misses  uint64

	now func() time.Time
}

// NewCache はCacheを生成する。metricsはnilでもよい。
// capacityが0以下の場合はデフォルト値100を使用する。
func NewCache(ttl time.Duration, capacity int, metrics CacheMetrics) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		metrics:  metrics,
		entries:  make(map[Key]*cacheEntry),
		now:      time.Now,
	}
}

// GetOrFetch はキーに対応する値を返す。未キャッシュまたは期限切れの場合は
// fetchを1回だけ実行し、同時に到着した他の呼び出しはその結果を待つ。
func (c *Cache) GetOrFetch(ctx context.Context, key Key, fetch func(ctx context.Context) (*timetableResponse, error)) (*timetableResponse, error) {
	c.mu.Lock()
	now := c.now()

	if e, ok := c.entries[key]; ok {
		if !e.done {
			// フェッチ実行中: 勝者の完了を待つ
			c.hits++
			c.recordHit()
			c.mu.Unlock()

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-e.ready:
			}
			// readyのclose以降、valueとerrは変更されない
			return e.value, e.err
		}

		if now.Sub(e.fetchedAt) < c.ttl {
			e.lastUsed = now
			c.hits++
			c.recordHit()
			c.mu.Unlock()
			return e.value, nil
		}

		// 期限切れ: エントリを破棄してミスとして扱う
		delete(c.entries, key)
	}

	e := &cacheEntry{ready: make(chan struct{}), lastUsed: now}
	c.entries[key] = e
	c.misses++
	c.recordMiss()
	c.evictLocked()
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	e.value = value
	e.err = err
	e.done = true
	e.fetchedAt = c.now()
	e.lastUsed = e.fetchedAt
	if err != nil {
		// 失敗結果は保持しない
		delete(c.entries, key)
	}
	close(e.ready)
	c.mu.Unlock()

	return value, err
}

// Stats は現在の利用統計を返す。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     len(c.entries),
		Capacity: c.capacity,
		TTL:      c.ttl,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

// evictLocked は容量超過時に最も使われていない完了済みエントリを破棄する。
// フェッチ実行中のエントリは破棄対象にしない。呼び出し元がmuを保持していること。
func (c *Cache) evictLocked() {
	for len(c.entries) > c.capacity {
		var victim Key
		var victimEntry *cacheEntry
		for k, e := range c.entries {
			if !e.done {
				continue
			}
			if victimEntry == nil || e.lastUsed.Before(victimEntry.lastUsed) {
				victim = k
				victimEntry = e
			}
		}
		if victimEntry == nil {
			return
		}
		delete(c.entries, victim)
	}
}

func (c *Cache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
}
