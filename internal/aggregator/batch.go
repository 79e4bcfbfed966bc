package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ObiAU/pinyinfeed/internal/ai"
	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

const (
	maxReportedErrors = 20
	maxErrorRunes     = 200
)

// Scraper fetches the readable text of an article page.
type Scraper interface {
	ScrapeArticleText(ctx context.Context, url string) (string, bool)
}

type TranslateResult struct {
	Translated int
	Failed     int
	Errors     []string
	// Headlines lists articles that gained a real translation in this run.
	Headlines []models.Headline
}

func (r *TranslateResult) fail(title string, err error) {
	r.Failed++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, title+": "+truncate(err.Error(), maxErrorRunes))
	}
}

// Translator runs articles through scrape, process and cache merge in
// fixed-size batches.
type Translator struct {
	cache     *cache.Cache
	processor ai.Processor
	scraper   Scraper
	batchSize int
	log       zerolog.Logger
}

func NewTranslator(c *cache.Cache, p ai.Processor, s Scraper, batchSize int, log zerolog.Logger) *Translator {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Translator{cache: c, processor: p, scraper: s, batchSize: batchSize, log: log}
}

type outcome struct {
	article *models.ProcessedArticle
	err     error
}

// TranslateArticles processes articles batch by batch. Batches run in order;
// items inside a batch run concurrently and never affect each other.
func (t *Translator) TranslateArticles(ctx context.Context, articles []models.NewsArticle) TranslateResult {
	var res TranslateResult

	for start := 0; start < len(articles); start += t.batchSize {
		end := min(start+t.batchSize, len(articles))
		batch := articles[start:end]

		if err := ctx.Err(); err != nil {
			for _, a := range articles[start:] {
				res.fail(a.Title, err)
			}
			break
		}

		t.log.Debug().Int("batch", start/t.batchSize+1).Int("size", len(batch)).Msg("translating batch")
		texts := t.scrapeBatch(ctx, batch)
		outcomes := t.processBatch(ctx, batch, texts)

		for i, a := range batch {
			o := outcomes[i]
			if o.err != nil {
				t.log.Warn().Err(o.err).Str("url", a.Link).Msg("article processing failed")
				res.fail(a.Title, o.err)
				continue
			}
			written, err := t.cache.Merge(ctx, a.Link, o.article)
			if err != nil {
				res.fail(a.Title, fmt.Errorf("caching: %w", err))
				continue
			}
			res.Translated++
			if written && models.HasRealTranslation(o.article) {
				res.Headlines = append(res.Headlines, models.Headline{
					Title:   a.Title,
					English: o.article.TitleEnglish,
					Link:    a.Link,
				})
			}
		}
	}
	return res
}

// scrapeBatch fetches every page in the batch concurrently. A page that
// cannot be scraped falls back to the feed's description, then its title.
func (t *Translator) scrapeBatch(ctx context.Context, batch []models.NewsArticle) []string {
	texts := make([]string, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range batch {
		g.Go(func() error {
			if text, ok := t.scraper.ScrapeArticleText(gctx, a.Link); ok {
				texts[i] = text
				return nil
			}
			texts[i] = a.FallbackText()
			return nil
		})
	}
	_ = g.Wait()
	return texts
}

func (t *Translator) processBatch(ctx context.Context, batch []models.NewsArticle, texts []string) []outcome {
	outcomes := make([]outcome, len(batch))
	var wg sync.WaitGroup
	for i, a := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			article, err := t.processor.ProcessArticle(ctx, texts[i], a.Title, a.ArticleID)
			if err == nil && article == nil {
				err = errors.New("processor returned no article")
			}
			outcomes[i] = outcome{article: article, err: err}
		}()
	}
	wg.Wait()
	return outcomes
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
