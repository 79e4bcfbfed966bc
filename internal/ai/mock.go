package ai

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

// MockProcessor produces deterministic placeholder output without any network
// call. Each character becomes a token and every gloss is MockTranslation.
type MockProcessor struct {
	now func() time.Time
}

func NewMockProcessor() *MockProcessor {
	return &MockProcessor{now: time.Now}
}

func (m *MockProcessor) Real() bool { return false }

func (m *MockProcessor) ProcessArticle(ctx context.Context, body, title, articleID string) (*models.ProcessedArticle, error) {
	parts := splitSentences(body)
	if len(parts) == 0 {
		parts = []string{body}
	}
	sentences := make([]models.ProcessedSentence, 0, len(parts))
	for _, p := range parts {
		sentences = append(sentences, models.ProcessedSentence{
			Tokens:  mockTokenize(strings.TrimSpace(p)),
			English: models.MockTranslation,
		})
	}

	return &models.ProcessedArticle{
		Sentences: sentences,
		TitleSentence: &models.ProcessedSentence{
			Tokens:  mockTokenize(title),
			English: models.MockTranslation,
		},
		TitleEnglish: models.MockTranslation,
		ProcessedAt:  timestamp(m.now),
		ArticleID:    articleID,
	}, nil
}

func mockTokenize(text string) []models.Token {
	tokens := make([]models.Token, 0, len(text))
	for _, r := range text {
		tok := models.Token{Text: string(r)}
		if !isPunct(r) {
			tok.Pinyin = models.StringPtr(models.MockPinyin)
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// isPunct covers CJK symbols, fullwidth forms, general punctuation,
// whitespace and ASCII punctuation.
func isPunct(r rune) bool {
	switch {
	case r >= 0x3000 && r <= 0x303F,
		r >= 0xFF00 && r <= 0xFFEF,
		r >= 0x2000 && r <= 0x206F,
		r >= 0x21 && r <= 0x2F,
		r >= 0x3A && r <= 0x40,
		r >= 0x5B && r <= 0x60,
		r >= 0x7B && r <= 0x7E:
		return true
	}
	return unicode.IsSpace(r)
}
