package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

// Processor turns Chinese article text into tokenized, glossed sentences.
type Processor interface {
	ProcessArticle(ctx context.Context, body, title, articleID string) (*models.ProcessedArticle, error)
	// Real reports whether glosses come from a hosted model.
	Real() bool
}

// New returns the hosted-model processor when a credential is configured and
// the mock processor otherwise.
func New(cfg config.LLMConfig, log zerolog.Logger) Processor {
	if cfg.RealAvailable() {
		log.Info().Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("using hosted LLM processor")
		return NewOpenAIProcessor(cfg)
	}
	log.Warn().Msg("no LLM credential configured, using mock processor")
	return NewMockProcessor()
}

// ShouldReprocess reports whether a cached article needs another pass: it is
// missing, was never completed, or holds placeholder glosses that a real
// provider could now replace.
func ShouldReprocess(cached *models.ProcessedArticle, realAvailable bool) bool {
	if cached == nil {
		return true
	}
	if cached.ProcessedAt == "" {
		return true
	}
	return cached.TitleEnglish == models.MockTranslation && realAvailable
}

func timestamp(now func() time.Time) string {
	return now().UTC().Format(time.RFC3339)
}
