package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html><head>
<title>新加坡今天下雨</title>
<style>.a { .b { color: red; } }</style>
<script>var tracking = "不要这个";</script>
</head><body>
<nav><a href="/">首页</a></nav>
<article>
<h1>新加坡今天下雨</h1>
<p>新功能！听新闻，按这里！</p>
<p>气象局表示，全岛今天下午多处出现雷阵雨，部分地区的降雨量超过五十毫米。交通部提醒公众出行时注意安全，并留意最新的天气预报。</p>
<p>专家说，这样的天气预计会持续到本周末，市民应该做好准备，避免在户外活动时遇到突如其来的大雨和闪电。</p>
<p>环境局也呼吁民众检查家中排水系统，以防积水导致蚊虫滋生，影响公共卫生与居民健康。</p>
</article>
<footer>版权所有</footer>
</body></html>`

func TestScrapeArticleText(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, articlePage)
	}))
	defer srv.Close()

	s := NewScraper(5*time.Second, zerolog.Nop())
	text, ok := s.ScrapeArticleText(context.Background(), srv.URL+"/singapore/rain-1")
	require.True(t, ok)

	assert.Contains(t, text, "气象局表示")
	assert.NotContains(t, text, "新功能")
	assert.NotContains(t, text, "听新闻")
	assert.NotContains(t, text, "tracking")
	assert.Equal(t, desktopUserAgent, gotUA)
	assert.Equal(t, acceptLanguage, gotLang)
}

func TestScrapeArticleTextFailures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, articlePage)
	}))
	defer slow.Close()

	s := NewScraper(50*time.Millisecond, zerolog.Nop())
	for _, u := range []string{notFound.URL, slow.URL, "ftp://example.com/x", "://bad"} {
		text, ok := s.ScrapeArticleText(context.Background(), u)
		assert.False(t, ok, u)
		assert.Empty(t, text, u)
	}
}

func TestCleanBoilerplate(t *testing.T) {
	in := "新功能! 听新闻，按这里！ 正文内容。Listen to the news, click here! I want to listen, click here!"
	assert.Equal(t, "正文内容。", cleanBoilerplate(in))
	assert.Equal(t, "", cleanBoilerplate("我要听，按这里！ "))
}

func TestRemoveNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>`+strings.Repeat("正文。", 60)+`</p><script>x()</script><style>p{}</style></body></html>`)
	}))
	defer srv.Close()

	text, ok := NewScraper(time.Second, zerolog.Nop()).ScrapeArticleText(context.Background(), srv.URL)
	require.True(t, ok)
	assert.NotContains(t, text, "x()")
	assert.NotContains(t, text, "p{}")
}
