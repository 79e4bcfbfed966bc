package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ObiAU/pinyinfeed/internal/ai"
	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/logging"
	"github.com/ObiAU/pinyinfeed/internal/models"
	"github.com/ObiAU/pinyinfeed/internal/sources"
	"github.com/ObiAU/pinyinfeed/internal/telegram"
)

// Deps are the collaborators an Aggregator is built from. Runs and Notifier
// are optional.
type Deps struct {
	Source    models.FeedSource
	Processor ai.Processor
	Scraper   Scraper
	Runs      RunStore
	Notifier  Notifier
}

type Aggregator struct {
	config    *config.Config
	cache     *cache.Cache
	processor ai.Processor
	scraper   Scraper
	snapshot  *sources.Snapshot
	refresher *Refresher
	runs      RunStore
	bot       *telegram.Bot
	log       zerolog.Logger

	processing singleflight.Group
	server     *http.Server
	mu         sync.RWMutex
	running    bool
}

func New(cfg *config.Config, cacheLayer *cache.Cache, deps Deps, log zerolog.Logger) *Aggregator {
	snapshot := sources.NewSnapshot(deps.Source, cfg.FeedTTL)
	translator := NewTranslator(cacheLayer, deps.Processor, deps.Scraper, cfg.BatchSize,
		logging.Component(log, "translator"))

	a := &Aggregator{
		config:    cfg,
		cache:     cacheLayer,
		processor: deps.Processor,
		scraper:   deps.Scraper,
		snapshot:  snapshot,
		runs:      deps.Runs,
		log:       log,
		refresher: &Refresher{
			source:        deps.Source,
			snapshot:      snapshot,
			cache:         cacheLayer,
			translator:    translator,
			realAvailable: deps.Processor.Real(),
			runs:          deps.Runs,
			notifier:      deps.Notifier,
			log:           logging.Component(log, "refresh"),
			now:           time.Now,
		},
	}
	if bot, ok := deps.Notifier.(*telegram.Bot); ok && bot != nil {
		bot.SetHeadlineSource(a.LatestHeadlines)
		a.bot = bot
	}
	return a
}

// Refresh runs one refresh pass, joining any run already in flight.
func (a *Aggregator) Refresh(ctx context.Context, trigger string) (models.RefreshReport, error) {
	return a.refresher.Refresh(ctx, trigger)
}

// Run serves HTTP and refreshes on the configured interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if a.bot != nil {
		if err := a.bot.Start(ctx); err != nil {
			a.log.Warn().Err(err).Msg("telegram polling disabled")
		}
	}

	errCh := a.startHTTPServer()

	if a.config.RefreshOnStart {
		go a.refreshOnce(ctx, TriggerStartup)
	}
	if a.config.ProcessingInterval > 0 {
		go a.processNewsLoop(ctx)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.shutdown()
		return fmt.Errorf("http server: %w", err)
	}
	return a.shutdown()
}

func (a *Aggregator) processNewsLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.ProcessingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshOnce(ctx, TriggerSchedule)
		}
	}
}

func (a *Aggregator) refreshOnce(ctx context.Context, trigger string) {
	if _, err := a.Refresh(ctx, trigger); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error().Err(err).Str("trigger", trigger).Msg("refresh failed")
	}
}

func (a *Aggregator) startHTTPServer() <-chan error {
	a.server = &http.Server{
		Addr:              ":" + a.config.ServerPort,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// LatestHeadlines returns up to limit feed articles that carry a real
// English title, in feed order.
func (a *Aggregator) LatestHeadlines(ctx context.Context, limit int) ([]models.Headline, error) {
	articles, err := a.snapshot.Articles(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.cache.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Headline
	for _, art := range articles {
		if len(out) >= limit {
			break
		}
		cached, ok := entries[art.Link]
		if !ok || !models.HasRealTranslation(&cached) {
			continue
		}
		out = append(out, models.Headline{Title: art.Title, English: cached.TitleEnglish, Link: art.Link})
	}
	return out, nil
}

func (a *Aggregator) isRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

func (a *Aggregator) shutdown() error {
	a.log.Info().Msg("shutting down")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.cache.Flush(flushCtx); err != nil {
		return fmt.Errorf("flushing cache on shutdown: %w", err)
	}
	return nil
}
