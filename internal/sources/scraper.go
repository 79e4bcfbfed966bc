package sources

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage   = "zh-CN,zh;q=0.9,en;q=0.8"
)

// 8world player and promo labels that readability keeps as body text.
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`新功能[!！]?\s*`),
	regexp.MustCompile(`(?i)New feature[!！]?\s*`),
	regexp.MustCompile(`听新闻[，,]按这里[!！]?\s*`),
	regexp.MustCompile(`(?i)Listen to the news[,，] click here[!！]?\s*`),
	regexp.MustCompile(`我要听[，,]按这里[!！]?\s*`),
	regexp.MustCompile(`(?i)I want to listen[,，] click here[!！]?\s*`),
}

// Scraper downloads an article page and extracts its main text.
type Scraper struct {
	client *http.Client
	log    zerolog.Logger
}

func NewScraper(timeout time.Duration, log zerolog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// ScrapeArticleText returns the readable body text of pageURL. Every
// failure yields ("", false); the caller falls back to feed text.
func (s *Scraper) ScrapeArticleText(ctx context.Context, pageURL string) (string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", desktopUserAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Str("url", pageURL).Msg("scrape request failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Debug().Int("status", resp.StatusCode).Str("url", pageURL).Msg("scrape non-2xx")
		return "", false
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", false
	}
	removeNodes(doc, atom.Style, atom.Script)

	article, err := readability.FromDocument(doc, parsed)
	if err != nil {
		s.log.Debug().Err(err).Str("url", pageURL).Msg("readability failed")
		return "", false
	}

	text := cleanBoilerplate(article.TextContent)
	if text == "" {
		return "", false
	}
	return text, true
}

func cleanBoilerplate(text string) string {
	for _, re := range boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

func removeNodes(n *html.Node, atoms ...atom.Atom) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && matchesAtom(c.DataAtom, atoms) {
			n.RemoveChild(c)
		} else {
			removeNodes(c, atoms...)
		}
		c = next
	}
}

func matchesAtom(a atom.Atom, atoms []atom.Atom) bool {
	for _, want := range atoms {
		if a == want {
			return true
		}
	}
	return false
}
