package timetable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock はテスト用の進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testKey(origin int) Key {
	return Key{Origin: origin, Destination: 680, Date: "2026-03-01", Hour: "16:30"}
}

func staticFetch(calls *int32) func(ctx context.Context) (*timetableResponse, error) {
	return func(ctx context.Context) (*timetableResponse, error) {
		atomic.AddInt32(calls, 1)
		return &timetableResponse{Result: &timetableResult{}}, nil
	}
}

func TestCache_SecondGetWithinTTLHitsCache(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	c := NewCache(10*time.Second, 100, nil)
	c.now = clock.Now

	var calls int32
	key := testKey(3600)

	if _, err := c.GetOrFetch(context.Background(), key, staticFetch(&calls)); err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}

	clock.Advance(5 * time.Second)
	if _, err := c.GetOrFetch(context.Background(), key, staticFetch(&calls)); err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}

	if calls != 1 {
		t.Errorf("TTL内の2回目の取得はフェッチしないべき: calls = %d, want 1", calls)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = hits:%d misses:%d, want hits:1 misses:1", stats.Hits, stats.Misses)
	}
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	c := NewCache(10*time.Second, 100, nil)
	c.now = clock.Now

	var calls int32
	key := testKey(3600)

	_, _ = c.GetOrFetch(context.Background(), key, staticFetch(&calls))
	clock.Advance(11 * time.Second)
	_, _ = c.GetOrFetch(context.Background(), key, staticFetch(&calls))

	if calls != 2 {
		t.Errorf("期限切れエントリは再フェッチすべき: calls = %d, want 2", calls)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache(10*time.Second, 100, nil)
	key := testKey(3600)
	boom := errors.New("upstream down")

	var calls int32
	failing := func(ctx context.Context) (*timetableResponse, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	if _, err := c.GetOrFetch(context.Background(), key, failing); !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch error = %v, want %v", err, boom)
	}
	if _, err := c.GetOrFetch(context.Background(), key, failing); !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch error = %v, want %v", err, boom)
	}

	if calls != 2 {
		t.Errorf("失敗結果はキャッシュされず毎回再試行すべき: calls = %d, want 2", calls)
	}
	if c.Stats().Size != 0 {
		t.Errorf("失敗エントリは破棄されるべき: size = %d", c.Stats().Size)
	}
}

func TestCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	c := NewCache(time.Hour, 2, nil)
	c.now = clock.Now

	var calls int32
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		_, _ = c.GetOrFetch(context.Background(), testKey(i), staticFetch(&calls))
	}

	if size := c.Stats().Size; size > 2 {
		t.Errorf("容量2を超えてはならない: size = %d", size)
	}

	// 最も古いキー(origin=0)が破棄されているはず: 再取得でフェッチが走る
	before := atomic.LoadInt32(&calls)
	_, _ = c.GetOrFetch(context.Background(), testKey(0), staticFetch(&calls))
	if atomic.LoadInt32(&calls) != before+1 {
		t.Error("LRUで破棄されたキーの再取得はフェッチすべき")
	}
}

func TestCache_SingleFlightCoalescesConcurrentFetches(t *testing.T) {
	c := NewCache(time.Hour, 100, nil)
	key := testKey(3600)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	slowFetch := func(ctx context.Context) (*timetableResponse, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return &timetableResponse{Result: &timetableResult{}}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.GetOrFetch(context.Background(), key, slowFetch); err != nil {
			t.Errorf("winner GetOrFetch returned error: %v", err)
		}
	}()

	<-started

	// フェッチ実行中に後続の呼び出しを複数発行する
	const waiters = 5
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), key, slowFetch)
			if err != nil {
				t.Errorf("waiter GetOrFetch returned error: %v", err)
			}
			if v == nil {
				t.Error("waiter は勝者の結果を受け取るべき")
			}
		}()
	}

	// 待機側がreadyチャネルに到達する猶予を与えてから解放する
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("同時アクセスはフェッチを1回に集約すべき: calls = %d, want 1", got)
	}
}

func TestCache_WaiterRespectsContextCancellation(t *testing.T) {
	c := NewCache(time.Hour, 100, nil)
	key := testKey(3600)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = c.GetOrFetch(context.Background(), key, func(ctx context.Context) (*timetableResponse, error) {
			close(started)
			<-release
			return &timetableResponse{Result: &timetableResult{}}, nil
		})
	}()
	defer close(release)

	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrFetch(ctx, key, func(ctx context.Context) (*timetableResponse, error) {
		return nil, fmt.Errorf("should not be called")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("キャンセル済みコンテキストの待機側は context.Canceled を返すべき: %v", err)
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	c := NewCache(10*time.Second, 0, nil)
	if c.Stats().Capacity != 100 {
		t.Errorf("capacity = %d, want デフォルトの100", c.Stats().Capacity)
	}
}
