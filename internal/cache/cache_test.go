package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

func realArticle(id, gloss string) *models.ProcessedArticle {
	return &models.ProcessedArticle{
		TitleSentence: &models.ProcessedSentence{English: gloss},
		TitleEnglish:  gloss,
		ProcessedAt:   "2026-10-19T00:00:00Z",
		ArticleID:     id,
	}
}

func mockArticle(id string) *models.ProcessedArticle {
	return realArticle(id, models.MockTranslation)
}

func testFileCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "articles.json")
	return New(NewFileBackend(path), zerolog.Nop()), path
}

func TestGetMissReturnsNil(t *testing.T) {
	c, _ := testFileCache(t)
	assert.Nil(t, c.Get(context.Background(), "https://example.com/a"))
}

func TestSetFlushReload(t *testing.T) {
	ctx := context.Background()
	c, path := testFileCache(t)

	require.NoError(t, c.Set(ctx, "https://example.com/a", realArticle("a", "Hello")))
	require.NoError(t, c.Flush(ctx))

	_, err := os.Stat(path)
	require.NoError(t, err)

	reopened := New(NewFileBackend(path), zerolog.Nop())
	got := reopened.Get(ctx, "https://example.com/a")
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got.TitleEnglish)
	assert.Equal(t, "a", got.ArticleID)
}

func TestSetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := testFileCache(t)
	a := realArticle("a", "Hello")

	require.NoError(t, c.Set(ctx, "u", a))
	require.NoError(t, c.Set(ctx, "u", a))

	all, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFlushWithoutChangesDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	c, path := testFileCache(t)

	require.NoError(t, c.Flush(ctx))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCorruptFileIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, path := testFileCache(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Nil(t, c.Get(ctx, "u"))

	// A corrupt file is replaced on the next flush.
	require.NoError(t, c.Set(ctx, "u", realArticle("a", "Hello")))
	require.NoError(t, c.Flush(ctx))
	reopened := New(NewFileBackend(path), zerolog.Nop())
	require.NotNil(t, reopened.Get(ctx, "u"))
}

func TestMergeNeverDowngrades(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		existing   *models.ProcessedArticle
		incoming   *models.ProcessedArticle
		wantStored bool
		wantGloss  string
	}{
		{"empty slot takes mock", nil, mockArticle("a"), true, models.MockTranslation},
		{"empty slot takes real", nil, realArticle("a", "New"), true, "New"},
		{"mock upgraded to real", mockArticle("a"), realArticle("a", "New"), true, "New"},
		{"mock replaced by mock", mockArticle("a"), mockArticle("b"), true, models.MockTranslation},
		{"real kept over mock", realArticle("a", "Old"), mockArticle("a"), false, "Old"},
		{"real replaced by real", realArticle("a", "Old"), realArticle("a", "New"), true, "New"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testFileCache(t)
			if tt.existing != nil {
				require.NoError(t, c.Set(ctx, "u", tt.existing))
			}
			stored, err := c.Merge(ctx, "u", tt.incoming)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStored, stored)
			got := c.Get(ctx, "u")
			require.NotNil(t, got)
			assert.Equal(t, tt.wantGloss, got.TitleEnglish)
		})
	}
}

func TestDeleteStale(t *testing.T) {
	ctx := context.Background()
	c, _ := testFileCache(t)
	before := map[string]*models.ProcessedArticle{
		"https://example.com/a": realArticle("a", "A"),
		"https://example.com/b": mockArticle("b"),
		"https://example.com/c": realArticle("c", "C"),
	}
	for u, a := range before {
		require.NoError(t, c.Set(ctx, u, a))
	}

	removed, err := c.DeleteStale(ctx, []string{"https://example.com/a", "https://example.com/b", "https://example.com/new"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, all, "https://example.com/c")
	assert.Equal(t, *before["https://example.com/a"], all["https://example.com/a"])
	assert.Equal(t, *before["https://example.com/b"], all["https://example.com/b"])
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c, _ := testFileCache(t)
	require.NoError(t, c.Set(ctx, "a", realArticle("a", "A")))
	require.NoError(t, c.Set(ctx, "b", mockArticle("b")))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Backend: "file", Entries: 2, Real: 1, Mock: 1}, stats)
}

func TestHashURL(t *testing.T) {
	h1 := HashURL("https://example.com/post-1")
	h2 := HashURL("https://example.com/post-2")

	assert.Len(t, h1, 32)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, HashURL("https://example.com/post-1"))
}
