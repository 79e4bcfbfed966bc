package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

const defaultCategory = "新加坡"

// RSSFeed reads one RSS feed and normalizes its items into NewsArticles.
type RSSFeed struct {
	url    string
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSSFeed(url string) *RSSFeed {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	return &RSSFeed{url: url, parser: parser, now: time.Now}
}

func (f *RSSFeed) FetchArticles(ctx context.Context) ([]models.NewsArticle, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.url, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		articles = append(articles, f.normalize(item))
	}
	return articles, nil
}

func (f *RSSFeed) normalize(item *gofeed.Item) models.NewsArticle {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	var pub string
	switch {
	case item.PublishedParsed != nil:
		pub = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.Published != "":
		pub = item.Published
	default:
		pub = f.now().UTC().Format(time.RFC3339)
	}

	categories := item.Categories
	if len(categories) == 0 {
		categories = []string{defaultCategory}
	}

	article := models.NewsArticle{
		ArticleID: id,
		Title:     item.Title,
		Link:      item.Link,
		PubDate:   pub,
		Category:  categories,
	}
	if snippet := stripHTML(item.Description); snippet != "" {
		article.Description = models.StringPtr(snippet)
	}
	if img := thumbnailURL(item); img != "" {
		article.ImageURL = models.StringPtr(img)
	}
	return article
}

// thumbnailURL reads media:thumbnail@url, falling back to the item image.
func thumbnailURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func (f *RSSFeed) GetName() string {
	return "rss"
}
