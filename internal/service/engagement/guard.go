package engagement

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Guard operations.
const (
	OpOpen  = "track-opening"
	OpClick = "track-url"
)

const hourBucket = "2006010215"

// Key derives the idempotency key for one logical event: the hex SHA-1 of
// op, both UIDs and the UTC hour bucket of at.
func Key(op, campaignUID, subscriberUID string, at time.Time) string {
	sum := sha1.Sum([]byte(op + ":" + campaignUID + ":" + subscriberUID + ":" + at.UTC().Format(hourBucket)))
	return hex.EncodeToString(sum[:])
}

// BucketEnd returns the first instant after the hour bucket containing at.
func BucketEnd(at time.Time) time.Time {
	return at.UTC().Truncate(time.Hour).Add(time.Hour)
}

// Markers remembers which keys already produced a durable event.
type Markers interface {
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
}

// RedisMarkers stores markers as plain Redis keys under "tracked:".
type RedisMarkers struct {
	client *redis.Client
}

// NewRedisMarkers creates a Redis-backed marker store.
func NewRedisMarkers(client *redis.Client) *RedisMarkers {
	return &RedisMarkers{client: client}
}

func (m *RedisMarkers) Has(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, "tracked:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *RedisMarkers) Set(ctx context.Context, key string, ttl time.Duration) error {
	return m.client.Set(ctx, "tracked:"+key, 1, ttl).Err()
}

// CachedMarkers fronts a shared store with an in-process cache of markers
// known to exist. Keys carry their hour bucket, so a cached hit cannot go
// stale while its key is still being looked up. Misses always ask the
// shared store.
type CachedMarkers struct {
	shared Markers
	cache  *gocache.Cache
}

// NewCachedMarkers wraps shared.
func NewCachedMarkers(shared Markers) *CachedMarkers {
	return &CachedMarkers{shared: shared, cache: gocache.New(time.Hour, 10*time.Minute)}
}

func (m *CachedMarkers) Has(ctx context.Context, key string) (bool, error) {
	if _, ok := m.cache.Get(key); ok {
		return true, nil
	}
	ok, err := m.shared.Has(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Set(key, struct{}{}, gocache.DefaultExpiration)
	return true, nil
}

func (m *CachedMarkers) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := m.shared.Set(ctx, key, ttl); err != nil {
		return err
	}
	m.cache.Set(key, struct{}{}, ttl)
	return nil
}

// GuardOptions tunes lock acquisition.
type GuardOptions struct {
	// Timeout bounds how long Acquire waits for a busy key.
	Timeout time.Duration
	// Retry is the polling interval while waiting.
	Retry time.Duration
	// TTL is the lifetime of an acquired lock in stores that expire locks.
	TTL time.Duration
}

// Guard serialises processing of one logical event across every instance
// sharing the lock store, and remembers which events already recorded.
type Guard struct {
	locks   distlock.Factory
	markers Markers
	opts    GuardOptions
}

// NewGuard creates a guard. markers may be nil, which disables duplicate
// detection beyond the lock itself.
func NewGuard(locks distlock.Factory, markers Markers, opts GuardOptions) *Guard {
	if opts.Retry <= 0 {
		opts.Retry = 100 * time.Millisecond
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	return &Guard{locks: locks, markers: markers, opts: opts}
}

// Held is an acquired guard. Release is safe to call more than once.
type Held struct {
	key    string
	lock   distlock.DistLock
	extend time.Duration
	once   sync.Once
}

// Acquire takes the lock for key, waiting up to the configured timeout.
// It returns false when the lock stays busy or the store fails; callers
// treat both as "someone else has it".
func (g *Guard) Acquire(ctx context.Context, key string) (*Held, bool) {
	lock := g.locks("tracking:" + key)
	err := distlock.AcquireWithin(ctx, lock, g.opts.Timeout, g.opts.Retry)
	if err != nil {
		if !errors.Is(err, distlock.ErrTimeout) {
			logger.Warn("idempotency guard unavailable", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return &Held{key: key, lock: lock, extend: g.opts.TTL + g.opts.Timeout}, true
}

// Extend pushes back the expiry of an expiring lock far enough to cover
// one more full Acquire wait plus a lock lifetime. Locks that do not
// expire are left alone.
func (h *Held) Extend(ctx context.Context) {
	if h == nil {
		return
	}
	ext, ok := h.lock.(distlock.Extender)
	if !ok {
		return
	}
	if err := ext.Extend(ctx, h.extend); err != nil {
		logger.Warn("idempotency guard extend failed", "key", h.key, "error", err.Error())
	}
}

// Release frees the lock. It runs on a detached context so a cancelled
// request still releases.
func (h *Held) Release(ctx context.Context) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := h.lock.Release(rctx); err != nil {
			logger.Warn("idempotency guard release failed", "key", h.key, "error", err.Error())
		}
	})
}

// Recorded reports whether marker was set in the current hour bucket.
// Store errors report false so tracking proceeds.
func (g *Guard) Recorded(ctx context.Context, marker string) bool {
	if g.markers == nil {
		return false
	}
	ok, err := g.markers.Has(ctx, marker)
	if err != nil {
		logger.Warn("dedup marker lookup failed", "marker", marker, "error", err.Error())
		return false
	}
	return ok
}

// MarkRecorded sets marker until one minute past the end of at's hour
// bucket.
func (g *Guard) MarkRecorded(ctx context.Context, marker string, at time.Time) {
	if g.markers == nil {
		return
	}
	ttl := BucketEnd(at).Sub(at.UTC()) + time.Minute
	if err := g.markers.Set(ctx, marker, ttl); err != nil {
		logger.Warn("dedup marker write failed", "marker", marker, "error", err.Error())
	}
}
