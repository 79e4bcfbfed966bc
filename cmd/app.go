package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ObiAU/pinyinfeed/internal/aggregator"
	"github.com/ObiAU/pinyinfeed/internal/ai"
	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/logging"
	"github.com/ObiAU/pinyinfeed/internal/runlog"
	"github.com/ObiAU/pinyinfeed/internal/sources"
	"github.com/ObiAU/pinyinfeed/internal/telegram"
)

// app holds the long-lived components a command works with.
type app struct {
	cache *cache.Cache
	runs  *runlog.Store
	agg   *aggregator.Aggregator
}

// buildApp opens the cache and assembles the aggregator. The run log and
// Telegram bot are optional: failures to open them are logged and skipped.
func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, withBot bool) (*app, error) {
	c, err := cache.Open(ctx, cfg.Cache, logging.Component(log, "cache"))
	if err != nil {
		return nil, err
	}

	deps := aggregator.Deps{
		Source:    sources.NewRSSFeed(cfg.FeedURL),
		Processor: ai.New(cfg.LLM, logging.Component(log, "ai")),
		Scraper:   sources.NewScraper(cfg.ScrapeTimeout, logging.Component(log, "scraper")),
	}
	a := &app{cache: c}

	if cfg.RunLogPath != "" {
		store, err := runlog.Open(cfg.RunLogPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.RunLogPath).Msg("run log disabled")
		} else {
			a.runs = store
			deps.Runs = store
			pruneRuns(store, cfg.RunRetention, log)
		}
	}

	if withBot && cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, logging.Component(log, "telegram"))
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			deps.Notifier = bot
		}
	}

	a.agg = aggregator.New(cfg, c, deps, log)
	return a, nil
}

// pruneRuns drops runs past the retention period. Zero keeps everything.
func pruneRuns(store *runlog.Store, retention time.Duration, log zerolog.Logger) {
	if retention <= 0 {
		return
	}
	deleted, err := store.Prune(retention)
	if err != nil {
		log.Warn().Err(err).Msg("pruning run log failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("pruned run log")
	}
}

func (a *app) Close() error {
	var errs []error
	if a.runs != nil {
		errs = append(errs, a.runs.Close())
	}
	errs = append(errs, a.cache.Close())
	return errors.Join(errs...)
}
