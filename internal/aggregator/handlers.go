package aggregator

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ObiAU/pinyinfeed/internal/ai"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

// Handler returns the HTTP routes served by the aggregator.
func (a *Aggregator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /stats", a.statsHandler)
	mux.HandleFunc("GET /api/articles", a.articlesHandler)
	mux.HandleFunc("GET /api/article-meta", a.articleMetaHandler)
	mux.HandleFunc("GET /api/article-title", a.articleTitleHandler)
	mux.HandleFunc("POST /api/process-article", a.processArticleHandler)
	mux.HandleFunc("GET /api/cron/prefetch", a.requireCronSecret(a.prefetchHandler))
	mux.HandleFunc("GET /api/cron/runs", a.requireCronSecret(a.runsHandler))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *Aggregator) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *Aggregator) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := a.cache.Stats(r.Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("cache stats failed")
	}

	resp := map[string]any{
		"cache_stats":    stats,
		"running":        a.isRunning(),
		"real_processor": a.processor.Real(),
	}
	if a.runs != nil {
		if last, err := a.runs.Last(); err == nil && last != nil {
			resp["last_run"] = last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type articleListing struct {
	models.NewsArticle
	TitleEnglish *string `json:"titleEnglish"`
}

func (a *Aggregator) articlesHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := a.snapshot.Articles(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("loading feed failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "could not load news",
			"detail": err.Error(),
		})
		return
	}

	entries, err := a.cache.Entries(r.Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("cache read failed, listing without titles")
	}

	listing := make([]articleListing, 0, len(articles))
	for _, art := range articles {
		item := articleListing{NewsArticle: art}
		if cached, ok := entries[art.Link]; ok && cached.TitleEnglish != "" {
			item.TitleEnglish = models.StringPtr(cached.TitleEnglish)
		}
		listing = append(listing, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": listing})
}

func (a *Aggregator) articleMetaHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}

	article, err := a.snapshot.Lookup(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "could not load news",
			"detail": err.Error(),
		})
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "Article not found")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (a *Aggregator) articleTitleHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]*string{"titleEnglish": nil}
	if url := r.URL.Query().Get("url"); url != "" {
		if cached := a.cache.Get(r.Context(), url); cached != nil && cached.TitleEnglish != "" {
			resp["titleEnglish"] = models.StringPtr(cached.TitleEnglish)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

const processTimeout = 5 * time.Minute

type processRequest struct {
	ArticleID    string `json:"articleId"`
	ArticleURL   string `json:"articleUrl"`
	ArticleText  string `json:"articleText"`
	ArticleTitle string `json:"articleTitle"`
}

func (a *Aggregator) processArticleHandler(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ArticleURL == "" || req.ArticleText == "" {
		writeError(w, http.StatusBadRequest, "Missing articleUrl or articleText")
		return
	}

	ctx := r.Context()
	if cached := a.cache.Get(ctx, req.ArticleURL); cached != nil && cached.TitleEnglish != "" &&
		!ai.ShouldReprocess(cached, a.processor.Real()) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	ch := a.processing.DoChan(req.ArticleURL, func() (any, error) {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
		defer cancel()
		return a.processArticle(jobCtx, req)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		a.log.Debug().Str("url", req.ArticleURL).Msg("client left before processing finished")
		return
	case res = <-ch:
	}
	if res.Err != nil {
		a.log.Error().Err(res.Err).Str("url", req.ArticleURL).Msg("process-article failed")
		writeError(w, http.StatusInternalServerError, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res.Val)
}

// processArticle translates one article and caches it. When the cache keeps
// an existing real translation, that entry is returned instead.
func (a *Aggregator) processArticle(ctx context.Context, req processRequest) (*models.ProcessedArticle, error) {
	text, ok := a.scraper.ScrapeArticleText(ctx, req.ArticleURL)
	if !ok {
		text = req.ArticleText
	}
	processed, err := a.processor.ProcessArticle(ctx, text, req.ArticleTitle, req.ArticleID)
	if err != nil {
		return nil, err
	}
	stored, err := a.cache.Merge(ctx, req.ArticleURL, processed)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Str("url", req.ArticleURL).Msg("caching processed article failed")
	case !stored:
		if cached := a.cache.Get(ctx, req.ArticleURL); cached != nil {
			return cached, nil
		}
	default:
		if err := a.cache.Flush(ctx); err != nil {
			a.log.Warn().Err(err).Str("url", req.ArticleURL).Msg("persisting cache failed")
		}
	}
	return processed, nil
}

// requireCronSecret rejects requests without the configured bearer token.
// With no secret configured every request is let through.
func (a *Aggregator) requireCronSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret := a.config.CronSecret; secret != "" {
			got := r.Header.Get("Authorization")
			want := "Bearer " + secret
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (a *Aggregator) prefetchHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.Refresh(r.Context(), TriggerCron)
	switch {
	case errors.Is(err, ErrFeed):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "could not load news",
			"detail": err.Error(),
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *Aggregator) runsHandler(w http.ResponseWriter, r *http.Request) {
	if a.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []models.RefreshReport{}})
		return
	}
	limit, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	runs, err := a.runs.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []models.RefreshReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
