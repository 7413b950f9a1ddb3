package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// Tiered fronts a durable Store with L1 in-memory and optional L2 Redis
// caching. L1 is fast but lost on restart; L2 survives restarts and is
// shared across replicas. Reads fall through L1 → L2 → durable, populating
// the upper tiers on the way back.
type Tiered struct {
	inner      Store
	l1         sync.Map // videoID → *cacheEntry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// TieredConfig wires a Tiered store. RedisURL may be empty to disable L2.
type TieredConfig struct {
	Inner      Store
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

// NewTiered builds the tiered store, probing Redis once at startup; an
// unreachable Redis disables L2 rather than failing.
func NewTiered(cfg TieredConfig) *Tiered {
	t := &Tiered{inner: cfg.Inner, ttl: cfg.TTL, maxEntries: cfg.MaxEntries}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				t.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	slog.Info("cache: initialized",
		slog.Duration("ttl", t.ttl),
		slog.Bool("redis", t.rdb != nil),
		slog.Int("max_entries", t.maxEntries))
	return t
}

func redisKey(videoID string) string { return "vn:" + videoID }

func (t *Tiered) Get(ctx context.Context, videoID string) (*notes.Result, error) {
	// L1
	if val, ok := t.l1.Load(videoID); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			var res notes.Result
			if json.Unmarshal(entry.data, &res) == nil {
				slog.Debug("cache: L1 hit", slog.String("video_id", videoID))
				return &res, nil
			}
		}
		t.l1.Delete(videoID) // expired or corrupt
	}

	// L2
	if t.rdb != nil {
		data, err := t.rdb.Get(ctx, redisKey(videoID)).Bytes()
		if err == nil {
			var res notes.Result
			if json.Unmarshal(data, &res) == nil {
				slog.Debug("cache: L2 hit", slog.String("video_id", videoID))
				t.storeL1(videoID, data, t.l1TTL(res.CreatedAt))
				return &res, nil
			}
		}
	}

	// Durable
	res, err := t.inner.Get(ctx, videoID)
	if err != nil || res == nil {
		return res, err
	}
	if data, merr := json.Marshal(res); merr == nil {
		t.storeL1(videoID, data, t.l1TTL(res.CreatedAt))
		t.storeL2(ctx, videoID, data, t.l2TTL(res.CreatedAt))
	}
	return res, nil
}

// Put writes through all tiers. The durable write is authoritative; cache
// writes are best effort.
func (t *Tiered) Put(ctx context.Context, res *notes.Result) error {
	if err := t.inner.Put(ctx, res); err != nil {
		return err
	}
	if data, err := json.Marshal(res); err == nil {
		t.storeL1(res.VideoID, data, t.l1TTL(res.CreatedAt))
		t.storeL2(ctx, res.VideoID, data, t.l2TTL(res.CreatedAt))
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, videoID string) error {
	t.l1.Delete(videoID)
	if t.rdb != nil {
		if err := t.rdb.Del(ctx, redisKey(videoID)).Err(); err != nil {
			slog.Debug("cache: L2 delete failed", slog.Any("error", err))
		}
	}
	return t.inner.Delete(ctx, videoID)
}

func (t *Tiered) List(ctx context.Context, limit int, search string) ([]Summary, error) {
	return t.inner.List(ctx, limit, search)
}

func (t *Tiered) Close() {
	if t.rdb != nil {
		if err := t.rdb.Close(); err != nil {
			slog.Debug("cache: redis close failed", slog.Any("error", err))
		}
	}
	t.inner.Close()
}

func (t *Tiered) storeL1(videoID string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t.evictIfNeeded()
	t.l1.Store(videoID, &cacheEntry{data: data, expiresAt: time.Now().Add(ttl)})
}

func (t *Tiered) storeL2(ctx context.Context, videoID string, data []byte, ttl time.Duration) {
	if t.rdb == nil || (t.ttl > 0 && ttl <= 0) {
		return
	}
	if err := t.rdb.Set(ctx, redisKey(videoID), data, ttl).Err(); err != nil {
		slog.Debug("cache: L2 set failed", slog.Any("error", err))
	}
}

// l2TTL is the remainder of the entry's durable lifetime. Cached copies must
// never outlive the row they were read from, so re-caching an aging entry on
// a read gets what is left of its lifetime, not a fresh TTL. Zero means
// expiry is disabled; negative means the entry is already past it.
func (t *Tiered) l2TTL(createdAt time.Time) time.Duration {
	if t.ttl <= 0 {
		return 0
	}
	return time.Until(createdAt.Add(t.ttl))
}

// l1TTL bounds the in-memory copy by the same remaining lifetime, capped at
// one hour for long-running processes.
func (t *Tiered) l1TTL(createdAt time.Time) time.Duration {
	r := t.l2TTL(createdAt)
	if r == 0 || r > time.Hour {
		return time.Hour
	}
	return r
}

// evictIfNeeded removes entries when L1 exceeds maxEntries: expired entries
// first, then the oldest by expiry.
func (t *Tiered) evictIfNeeded() {
	if t.maxEntries <= 0 {
		return
	}

	count := 0
	t.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < t.maxEntries {
		return
	}

	now := time.Now()
	t.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			t.l1.Delete(key)
			count--
		}
		return count >= t.maxEntries
	})
	if count < t.maxEntries {
		return
	}

	for count >= t.maxEntries {
		var oldestKey any
		oldestAt := now.Add(24 * time.Hour)
		t.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		t.l1.Delete(oldestKey)
		count--
	}
}
