package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>8视界新闻</title>
  <item>
    <title>新加坡今天下雨</title>
    <link>https://www.8world.com/singapore/rain-1</link>
    <guid>rain-1</guid>
    <description><![CDATA[<p>全岛<b>多处</b>下雨。</p>]]></description>
    <pubDate>Mon, 19 Oct 2026 08:00:00 +0800</pubDate>
    <category>新加坡</category>
    <media:thumbnail url="https://img.8world.com/rain.jpg"/>
  </item>
  <item>
    <title>没有链接</title>
    <guid>no-link</guid>
  </item>
  <item>
    <title>只有链接</title>
    <link>https://www.8world.com/world/only-link</link>
  </item>
</channel>
</rss>`

func feedServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRSSFeedFetchArticles(t *testing.T) {
	srv, _ := feedServer(t, http.StatusOK, sampleFeed)
	feed := NewRSSFeed(srv.URL)
	feed.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

	articles, err := feed.FetchArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2, "item without link is dropped")

	first := articles[0]
	assert.Equal(t, "rain-1", first.ArticleID)
	assert.Equal(t, "新加坡今天下雨", first.Title)
	assert.Equal(t, "https://www.8world.com/singapore/rain-1", first.Link)
	require.NotNil(t, first.Description)
	assert.Equal(t, "全岛 多处 下雨。", *first.Description)
	assert.Equal(t, "2026-10-19T00:00:00Z", first.PubDate)
	require.NotNil(t, first.ImageURL)
	assert.Equal(t, "https://img.8world.com/rain.jpg", *first.ImageURL)
	assert.Equal(t, []string{"新加坡"}, first.Category)

	second := articles[1]
	assert.Equal(t, "https://www.8world.com/world/only-link", second.ArticleID, "id falls back to link")
	assert.Nil(t, second.Description)
	assert.Nil(t, second.ImageURL)
	assert.Equal(t, "2026-10-19T00:00:00Z", second.PubDate, "missing date falls back to now")
	assert.Equal(t, []string{defaultCategory}, second.Category)
	assert.Equal(t, "只有链接", second.FallbackText())
}

func TestRSSFeedErrors(t *testing.T) {
	srv, _ := feedServer(t, http.StatusInternalServerError, "oops")
	_, err := NewRSSFeed(srv.URL).FetchArticles(context.Background())
	require.Error(t, err)

	srv, _ = feedServer(t, http.StatusOK, "<html>not a feed</html>")
	_, err = NewRSSFeed(srv.URL).FetchArticles(context.Background())
	require.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "", stripHTML("  "))
	assert.Equal(t, "纯文本", stripHTML("纯文本"))
	assert.Equal(t, "a b", stripHTML("<div>a</div>\n\n<p>b</p>"))
}

func TestSnapshot(t *testing.T) {
	srv, hits := feedServer(t, http.StatusOK, sampleFeed)
	snap := NewSnapshot(NewRSSFeed(srv.URL), time.Minute)
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	snap.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := snap.Articles(ctx)
	require.NoError(t, err)
	_, err = snap.Articles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "second call is memoized")

	got, err := snap.Lookup(ctx, "rain-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "新加坡今天下雨", got.Title)

	missing, err := snap.Lookup(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	snap.Invalidate()
	_, err = snap.Articles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))

	now = now.Add(2 * time.Minute)
	_, err = snap.Articles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(hits), "expired after ttl")
}
