package sources

import (
	"context"
	"sync"
	"time"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

// Snapshot memoizes the latest feed fetch for ttl so page loads don't
// hit the upstream feed each time.
type Snapshot struct {
	source models.FeedSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	articles  []models.NewsArticle
	fetchedAt time.Time
}

func NewSnapshot(source models.FeedSource, ttl time.Duration) *Snapshot {
	return &Snapshot{source: source, ttl: ttl, now: time.Now}
}

// Articles returns the memoized listing, refetching when it is older
// than the ttl or has been invalidated.
func (s *Snapshot) Articles(ctx context.Context) ([]models.NewsArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.articles != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.articles, nil
	}

	articles, err := s.source.FetchArticles(ctx)
	if err != nil {
		return nil, err
	}
	s.articles = articles
	s.fetchedAt = s.now()
	return articles, nil
}

// Lookup finds an article by id in the current listing. It returns nil
// when the id is not in the feed.
func (s *Snapshot) Lookup(ctx context.Context, id string) (*models.NewsArticle, error) {
	articles, err := s.Articles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].ArticleID == id {
			a := articles[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.articles = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
