package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

// persister moves the whole cache blob to and from storage. load returns
// nil data when nothing has been stored yet.
type persister interface {
	name() string
	load(ctx context.Context) ([]byte, error)
	save(ctx context.Context, data []byte) error
}

// snapshotBackend keeps the full cache in memory as one map and writes it back
// as a single blob on Flush.
type snapshotBackend struct {
	p      persister
	indent bool

	mu     sync.Mutex
	loaded bool
	dirty  bool
	data   map[string]models.ProcessedArticle
}

func newSnapshotBackend(p persister, indent bool) *snapshotBackend {
	return &snapshotBackend{p: p, indent: indent, data: make(map[string]models.ProcessedArticle)}
}

func (s *snapshotBackend) Name() string { return s.p.name() }

// ensureLoaded must be called with mu held. Writes made before a successful
// load take precedence over stored values.
func (s *snapshotBackend) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	raw, err := s.p.load(ctx)
	if err != nil {
		return fmt.Errorf("loading %s cache: %w", s.p.name(), err)
	}
	stored := make(map[string]models.ProcessedArticle)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			// Corrupt blob: start over from pending writes.
			s.loaded = true
			return fmt.Errorf("decoding %s cache: %w: %w", s.p.name(), ErrCorrupt, err)
		}
	}
	for k, v := range s.data {
		stored[k] = v
	}
	s.data = stored
	s.loaded = true
	return nil
}

func (s *snapshotBackend) Get(ctx context.Context, url string) (*models.ProcessedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	a, ok := s.data[url]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *snapshotBackend) Set(ctx context.Context, url string, article *models.ProcessedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[url] = *article
	s.dirty = true
	return nil
}

func (s *snapshotBackend) All(ctx context.Context) (map[string]models.ProcessedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]models.ProcessedArticle, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *snapshotBackend) DeleteStale(ctx context.Context, live map[string]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	removed := 0
	for url := range s.data {
		if _, ok := live[url]; !ok {
			delete(s.data, url)
			removed++
		}
	}
	if removed > 0 {
		s.dirty = true
	}
	return removed, nil
}

func (s *snapshotBackend) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if !s.loaded {
		// Never overwrite a blob we could not read with a partial one.
		if err := s.ensureLoaded(ctx); err != nil && !s.loaded {
			return err
		}
	}
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(s.data, "", "  ")
	} else {
		data, err = json.Marshal(s.data)
	}
	if err != nil {
		return fmt.Errorf("encoding %s cache: %w", s.p.name(), err)
	}
	if err := s.p.save(ctx, data); err != nil {
		return fmt.Errorf("saving %s cache: %w", s.p.name(), err)
	}
	s.dirty = false
	return nil
}

func (s *snapshotBackend) Close() error { return nil }
