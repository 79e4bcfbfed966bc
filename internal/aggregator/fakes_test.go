package aggregator

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

type fakeFeed struct {
	mu       sync.Mutex
	articles []models.NewsArticle
	err      error
	fetches  int
}

func (f *fakeFeed) FetchArticles(ctx context.Context) ([]models.NewsArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.NewsArticle, len(f.articles))
	copy(out, f.articles)
	return out, nil
}

func (f *fakeFeed) GetName() string { return "fake" }

func (f *fakeFeed) set(articles []models.NewsArticle) {
	f.mu.Lock()
	f.articles = articles
	f.mu.Unlock()
}

type fakeScraper struct {
	fail map[string]bool
}

func (s *fakeScraper) ScrapeArticleText(ctx context.Context, url string) (string, bool) {
	if s.fail[url] {
		return "", false
	}
	return "正文来自" + url, true
}

type fakeProcessor struct {
	real    bool
	delay   time.Duration
	fail    map[string]error
	release chan struct{}

	mu     sync.Mutex
	bodies map[string]string
	calls  int

	inFlight    int32
	maxInFlight int32
}

func (p *fakeProcessor) Real() bool { return p.real }

func (p *fakeProcessor) ProcessArticle(ctx context.Context, body, title, articleID string) (*models.ProcessedArticle, error) {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&p.maxInFlight)
		if n <= prev || atomic.CompareAndSwapInt32(&p.maxInFlight, prev, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls++
	if p.bodies == nil {
		p.bodies = make(map[string]string)
	}
	p.bodies[title] = body
	p.mu.Unlock()

	if p.release != nil {
		<-p.release
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if err := p.fail[title]; err != nil {
		return nil, err
	}

	english := models.MockTranslation
	if p.real {
		english = "EN " + title
	}
	return &models.ProcessedArticle{
		Sentences:    []models.ProcessedSentence{{Tokens: []models.Token{{Text: title}}, English: english}},
		TitleEnglish: english,
		ProcessedAt:  "2026-10-19T08:00:00Z",
		ArticleID:    articleID,
	}, nil
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []models.RefreshReport
	err  error
}

func (f *fakeRuns) Record(r models.RefreshReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeRuns) Recent(limit int) ([]models.RefreshReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RefreshReport, 0, len(f.runs))
	for i := len(f.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, f.runs[i])
	}
	return out, nil
}

func (f *fakeRuns) Last() (*models.RefreshReport, error) {
	runs, _ := f.Recent(1)
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	headlines [][]models.Headline
	err       error
}

func (n *fakeNotifier) SendDigest(ctx context.Context, report models.RefreshReport, headlines []models.Headline) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.headlines = append(n.headlines, headlines)
	return n.err
}

func newsArticle(id, title string) models.NewsArticle {
	return models.NewsArticle{
		ArticleID: id,
		Title:     title,
		Link:      "https://www.8world.com/news/" + id,
		PubDate:   "2026-10-19T00:00:00Z",
		Category:  []string{"新加坡"},
	}
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(cache.NewFileBackend(filepath.Join(t.TempDir(), "articles.json")), zerolog.Nop())
	t.Cleanup(func() { c.Close() })
	return c
}

// flushFailBackend is a cache backend whose buffered writes never persist.
type flushFailBackend struct {
	cache.Backend
	err error
}

func (b *flushFailBackend) Flush(ctx context.Context) error { return b.err }

func testConfig() *config.Config {
	return &config.Config{
		FeedTTL:    time.Minute,
		BatchSize:  2,
		ServerPort: "0",
	}
}

type harness struct {
	agg       *Aggregator
	feed      *fakeFeed
	cache     *cache.Cache
	processor *fakeProcessor
	scraper   *fakeScraper
	runs      *fakeRuns
	notifier  *fakeNotifier
}

func newHarness(t *testing.T, cfg *config.Config, processor *fakeProcessor, articles ...models.NewsArticle) *harness {
	t.Helper()
	return newHarnessWithCache(t, cfg, testCache(t), processor, articles...)
}

func newHarnessWithCache(t *testing.T, cfg *config.Config, c *cache.Cache, processor *fakeProcessor, articles ...models.NewsArticle) *harness {
	t.Helper()
	h := &harness{
		feed:      &fakeFeed{articles: articles},
		cache:     c,
		processor: processor,
		scraper:   &fakeScraper{},
		runs:      &fakeRuns{},
		notifier:  &fakeNotifier{},
	}
	h.agg = New(cfg, h.cache, Deps{
		Source:    h.feed,
		Processor: processor,
		Scraper:   h.scraper,
		Runs:      h.runs,
		Notifier:  h.notifier,
	}, zerolog.Nop())
	return h
}
