package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

func testKVCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(NewKVBackend(rdb, "test:", ttl), zerolog.Nop())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestKVSetGet(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, time.Hour)

	assert.Nil(t, c.Get(ctx, "https://example.com/a"))
	require.NoError(t, c.Set(ctx, "https://example.com/a", realArticle("a", "Hello")))

	got := c.Get(ctx, "https://example.com/a")
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got.TitleEnglish)

	key := "test:article:" + HashURL("https://example.com/a")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
	require.NoError(t, c.Flush(ctx))
}

func TestKVMalformedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, 0)
	require.NoError(t, mr.Set("test:article:"+HashURL("u"), "garbage"))

	assert.Nil(t, c.Get(ctx, "u"))
}

func TestKVDeleteStale(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, 0)
	require.NoError(t, mr.Set("unrelated", "keep"))
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, u, realArticle(u, "gloss "+u)))
	}

	removed, err := c.DeleteStale(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "gloss a", all["a"].TitleEnglish)
	assert.Equal(t, "gloss c", all["c"].TitleEnglish)
	assert.True(t, mr.Exists("unrelated"))
}

func TestKVUnreachableIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, 0)
	mr.Close()

	assert.Nil(t, c.Get(ctx, "u"))
}

func TestKVMergeKeepsRealWhenReadFails(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, 0)
	require.NoError(t, c.Set(ctx, "u", realArticle("a", "Real gloss")))

	mr.SetError("ERR backend unavailable")
	stored, err := c.Merge(ctx, "u", mockArticle("a"))
	require.Error(t, err)
	assert.False(t, stored)
	mr.SetError("")

	got := c.Get(ctx, "u")
	require.NotNil(t, got)
	assert.Equal(t, "Real gloss", got.TitleEnglish)
}

func TestKVMergeReplacesMalformedEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := testKVCache(t, 0)
	require.NoError(t, mr.Set("test:article:"+HashURL("u"), "garbage"))

	stored, err := c.Merge(ctx, "u", mockArticle("a"))
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, models.MockTranslation, c.Get(ctx, "u").TitleEnglish)
}
