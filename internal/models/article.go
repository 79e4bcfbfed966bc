package models

import (
	"context"
	"time"
)

const (
	// MockTranslation is the gloss the mock processor writes for every sentence.
	MockTranslation = "[mock translation]"
	// MockPinyin is the placeholder pronunciation for non-punctuation characters.
	MockPinyin = "mock"
)

type NewsArticle struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description *string  `json:"description"`
	PubDate     string   `json:"pubDate"`
	ImageURL    *string  `json:"image_url"`
	Category    []string `json:"category"`
}

// FallbackText is the text used when the article body could not be scraped.
func (a NewsArticle) FallbackText() string {
	if a.Description != nil && *a.Description != "" {
		return *a.Description
	}
	return a.Title
}

type Token struct {
	Text   string  `json:"text"`
	Pinyin *string `json:"pinyin"`
}

type ProcessedSentence struct {
	Tokens  []Token `json:"tokens"`
	English string  `json:"english"`
}

type ProcessedArticle struct {
	Sentences     []ProcessedSentence `json:"sentences"`
	TitleSentence *ProcessedSentence  `json:"titleSentence,omitempty"`
	TitleEnglish  string              `json:"titleEnglish,omitempty"`
	ProcessedAt   string              `json:"processedAt"`
	ArticleID     string              `json:"articleId"`
}

// CacheEntry is the per-key record written by key-value cache backends.
type CacheEntry struct {
	Article  ProcessedArticle `json:"article"`
	URL      string           `json:"url"`
	CachedAt time.Time        `json:"cachedAt"`
}

// HasRealTranslation reports whether the article carries a gloss produced by a
// real provider rather than the mock placeholder.
func HasRealTranslation(article *ProcessedArticle) bool {
	if article == nil {
		return false
	}
	return article.TitleEnglish != "" && article.TitleEnglish != MockTranslation
}

type FeedSource interface {
	FetchArticles(ctx context.Context) ([]NewsArticle, error)
	GetName() string
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
