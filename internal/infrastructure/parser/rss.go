package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/scanner"
)

const rssTimeout = 8 * time.Second

// RSSScanner reads RSS, Atom and JSON feeds.
type RSSScanner struct {
	client  *http.Client
	timeout time.Duration
}

// NewRSSScanner wires an HTTP client.
func NewRSSScanner(client *http.Client) *RSSScanner {
	return &RSSScanner{client: defaultClient(client), timeout: rssTimeout}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan downloads the feed and maps every item with a title and a link.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := openPage(ctx, s.client, req.Entry)
	if err != nil {
		return nil, fmt.Errorf("rss: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("rss: parse feed: %w", err)
	}

	items := make([]domain.Candidate, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		items = append(items, domain.Candidate{
			Title:       title,
			URL:         link,
			Summary:     itemSummary(it),
			PublishTime: itemPublishTime(it),
			SourceID:    req.SourceID,
			SourceType:  req.SourceType,
		})
	}
	return items, nil
}

func itemSummary(it *gofeed.Item) string {
	raw := it.Description
	if strings.TrimSpace(raw) == "" {
		raw = it.Content
	}
	return plainText(raw)
}

// plainText drops markup from feed descriptions.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "<") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func itemPublishTime(it *gofeed.Item) string {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.Published != "":
		return it.Published
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		return it.Updated
	}
}
