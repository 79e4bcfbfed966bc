package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	// ErrCorrupt marks stored data that could not be decoded. It holds no
	// usable translation, so writers may replace it.
	ErrCorrupt = errors.New("corrupt cache data")
)

// Backend is a storage engine for processed articles keyed by source URL.
// A read miss is (nil, nil).
type Backend interface {
	Name() string
	Get(ctx context.Context, url string) (*models.ProcessedArticle, error)
	Set(ctx context.Context, url string, article *models.ProcessedArticle) error
	All(ctx context.Context) (map[string]models.ProcessedArticle, error)
	DeleteStale(ctx context.Context, live map[string]struct{}) (int, error)
	Flush(ctx context.Context) error
	Close() error
}

// Cache is the translation cache handle threaded through the pipeline.
type Cache struct {
	backend Backend
	log     zerolog.Logger

	// serializes read-compare-write in Merge
	mergeMu sync.Mutex
}

func New(backend Backend, log zerolog.Logger) *Cache {
	return &Cache{backend: backend, log: log}
}

// Open builds the backend named in cfg. cfg.Backend must already be resolved.
func Open(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (*Cache, error) {
	var backend Backend
	switch cfg.Backend {
	case config.BackendFile:
		backend = NewFileBackend(cfg.FilePath)
	case config.BackendBlob:
		api, err := NewVercelBlobAPI()
		if err != nil {
			return nil, fmt.Errorf("opening blob cache: %w", err)
		}
		backend = NewBlobBackend(api, cfg.BlobKey, &http.Client{Timeout: 30 * time.Second})
	case config.BackendKV:
		opt, err := redis.ParseURL(cfg.KVURL)
		if err != nil {
			return nil, fmt.Errorf("parsing KV_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("kv cache unreachable, reads will miss until it recovers")
		}
		backend = NewKVBackend(rdb, cfg.KVPrefix, cfg.KVTTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	log.Info().Str("backend", backend.Name()).Msg("translation cache opened")
	return New(backend, log), nil
}

func (c *Cache) Backend() string {
	return c.backend.Name()
}

// Get returns the cached article for url or nil. Backend failures are logged
// and reported as a miss.
func (c *Cache) Get(ctx context.Context, url string) *models.ProcessedArticle {
	article, err := c.backend.Get(ctx, url)
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("cache read failed, treating as miss")
		return nil
	}
	return article
}

func (c *Cache) Set(ctx context.Context, url string, article *models.ProcessedArticle) error {
	if article == nil {
		return errors.New("cache set: nil article")
	}
	return c.backend.Set(ctx, url, article)
}

// Merge stores article under url unless that would replace a real
// translation with a placeholder one. It reports whether the write happened.
// When the current entry cannot be read nothing is written.
func (c *Cache) Merge(ctx context.Context, url string, article *models.ProcessedArticle) (bool, error) {
	if article == nil {
		return false, errors.New("cache merge: nil article")
	}
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	// An unreadable slot is not an empty one.
	existing, err := c.backend.Get(ctx, url)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return false, fmt.Errorf("cache merge %s: %w", url, err)
	}
	if !models.HasRealTranslation(article) && models.HasRealTranslation(existing) {
		c.log.Debug().Str("url", url).Msg("kept real translation over placeholder")
		return false, nil
	}
	if err := c.backend.Set(ctx, url, article); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteStale removes every entry whose URL is not in liveURLs.
func (c *Cache) DeleteStale(ctx context.Context, liveURLs []string) (int, error) {
	live := make(map[string]struct{}, len(liveURLs))
	for _, u := range liveURLs {
		live[u] = struct{}{}
	}
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()
	return c.backend.DeleteStale(ctx, live)
}

// Flush persists buffered writes. Backends without buffering return nil.
func (c *Cache) Flush(ctx context.Context) error {
	return c.backend.Flush(ctx)
}

func (c *Cache) Entries(ctx context.Context) (map[string]models.ProcessedArticle, error) {
	return c.backend.All(ctx)
}

type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Real    int    `json:"real"`
	Mock    int    `json:"mock"`
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: c.backend.Name()}
	all, err := c.backend.All(ctx)
	if err != nil {
		return stats, err
	}
	for _, a := range all {
		a := a
		stats.Entries++
		if models.HasRealTranslation(&a) {
			stats.Real++
		} else {
			stats.Mock++
		}
	}
	return stats, nil
}

func (c *Cache) Close() error {
	return c.backend.Close()
}

// HashURL derives the storage identifier used for per-article keys.
func HashURL(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h[:16])
}
