package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ObiAU/pinyinfeed/internal/ai"
	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/models"
	"github.com/ObiAU/pinyinfeed/internal/sources"
)

const (
	TriggerSchedule = "schedule"
	TriggerCron     = "cron"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// refreshTimeout bounds a shared run once it is detached from its callers.
const refreshTimeout = 15 * time.Minute

// ErrFeed marks a refresh that could not load the upstream feed.
var ErrFeed = errors.New("feed fetch failed")

// RunStore records refresh runs.
type RunStore interface {
	Record(r models.RefreshReport) error
	Recent(limit int) ([]models.RefreshReport, error)
	Last() (*models.RefreshReport, error)
}

// Notifier announces newly translated headlines.
type Notifier interface {
	SendDigest(ctx context.Context, report models.RefreshReport, headlines []models.Headline) error
}

type Refresher struct {
	source        models.FeedSource
	snapshot      *sources.Snapshot
	cache         *cache.Cache
	translator    *Translator
	realAvailable bool
	runs          RunStore
	notifier      Notifier
	log           zerolog.Logger
	now           func() time.Time

	group singleflight.Group
}

// Refresh brings the cache in line with the current feed. Concurrent calls
// share a single run and all receive its report. The run does not stop when
// one caller's ctx ends; that caller gets ctx.Err() and the others still
// wait for the full result.
func (r *Refresher) Refresh(ctx context.Context, trigger string) (models.RefreshReport, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return r.run(runCtx, trigger)
	})
	select {
	case <-ctx.Done():
		r.log.Debug().Str("trigger", trigger).Msg("caller left in-flight refresh")
		return models.RefreshReport{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			r.log.Debug().Str("trigger", trigger).Msg("joined in-flight refresh")
		}
		report, _ := res.Val.(models.RefreshReport)
		return report, res.Err
	}
}

func (r *Refresher) run(ctx context.Context, trigger string) (models.RefreshReport, error) {
	report := models.RefreshReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Errors:    []string{},
		StartedAt: r.now().UTC(),
	}
	log := r.log.With().Str("run_id", report.RunID).Str("trigger", trigger).Logger()

	articles, err := r.source.FetchArticles(ctx)
	if err != nil {
		log.Error().Err(err).Msg("feed fetch failed")
		report.FinishedAt = r.now().UTC()
		return report, fmt.Errorf("%w: %w", ErrFeed, err)
	}
	report.Total = len(articles)

	var queue []models.NewsArticle
	links := make([]string, 0, len(articles))
	for _, a := range articles {
		links = append(links, a.Link)
		if ai.ShouldReprocess(r.cache.Get(ctx, a.Link), r.realAvailable) {
			queue = append(queue, a)
		} else {
			report.Skipped++
		}
	}
	log.Info().Int("total", report.Total).Int("queued", len(queue)).Msg("refresh started")

	result := r.translator.TranslateArticles(ctx, queue)
	report.Processed = result.Translated
	report.Failed = result.Failed
	report.Errors = append(report.Errors, result.Errors...)

	deleted, err := r.cache.DeleteStale(ctx, links)
	if err != nil {
		log.Warn().Err(err).Msg("stale cache cleanup failed")
		report.Errors = append(report.Errors, "delete stale: "+truncate(err.Error(), maxErrorRunes))
	}
	report.Deleted = deleted

	if report.Processed > 0 || report.Deleted > 0 {
		if err := r.cache.Flush(ctx); err != nil {
			log.Error().Err(err).Msg("cache flush failed")
			report.Errors = append(report.Errors, "persist: "+truncate(err.Error(), maxErrorRunes))
		}
	}

	if r.snapshot != nil {
		r.snapshot.Invalidate()
	}
	report.FinishedAt = r.now().UTC()

	log.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("deleted", report.Deleted).
		Dur("took", report.Duration()).
		Msg("refresh finished")

	if r.runs != nil {
		if err := r.runs.Record(report); err != nil {
			log.Warn().Err(err).Msg("recording run failed")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.SendDigest(ctx, report, result.Headlines); err != nil {
			log.Warn().Err(err).Msg("sending digest failed")
		}
	}
	return report, nil
}
