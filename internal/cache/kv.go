package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

type kvBackend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewKVBackend stores one CacheEntry per article under
// <prefix>article:<HashURL(url)>. A zero ttl keeps entries forever.
func NewKVBackend(rdb *redis.Client, prefix string, ttl time.Duration) Backend {
	return &kvBackend{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (k *kvBackend) Name() string { return "kv" }

func (k *kvBackend) key(url string) string {
	return k.prefix + "article:" + HashURL(url)
}

func (k *kvBackend) Get(ctx context.Context, url string) (*models.ProcessedArticle, error) {
	data, err := k.rdb.Get(ctx, k.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("kv decode %s: %w: %w", url, ErrCorrupt, err)
	}
	return &entry.Article, nil
}

func (k *kvBackend) Set(ctx context.Context, url string, article *models.ProcessedArticle) error {
	data, err := json.Marshal(models.CacheEntry{Article: *article, URL: url, CachedAt: k.now().UTC()})
	if err != nil {
		return fmt.Errorf("kv encode %s: %w", url, err)
	}
	if err := k.rdb.Set(ctx, k.key(url), data, k.ttl).Err(); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (k *kvBackend) keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	iter := k.rdb.Scan(ctx, 0, k.prefix+"article:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kv scan: %w", err)
	}
	return keys, nil
}

func (k *kvBackend) All(ctx context.Context) (map[string]models.ProcessedArticle, error) {
	keys, err := k.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.ProcessedArticle, len(keys))
	for _, key := range keys {
		data, err := k.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kv get: %w", err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		out[entry.URL] = entry.Article
	}
	return out, nil
}

func (k *kvBackend) DeleteStale(ctx context.Context, live map[string]struct{}) (int, error) {
	liveKeys := make(map[string]struct{}, len(live))
	for url := range live {
		liveKeys[k.key(url)] = struct{}{}
	}
	keys, err := k.keys(ctx)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, key := range keys {
		if _, ok := liveKeys[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := k.rdb.Del(ctx, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("kv delete: %w", err)
	}
	return int(n), nil
}

func (k *kvBackend) Flush(ctx context.Context) error { return nil }

func (k *kvBackend) Close() error { return k.rdb.Close() }
