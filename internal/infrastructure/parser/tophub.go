package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/scanner"
)

const (
	topHubSourceID = "tophub"
	topHubVia      = "TopHub"
	topHubTimeout  = 5 * time.Second
)

var rankExpr = regexp.MustCompile(`\d+`)

// TopHubScanner reads the TopHub rolling list. Items carry a heat rank and
// are low-trust by default.
type TopHubScanner struct {
	client  *http.Client
	timeout time.Duration
}

// NewTopHubScanner wires an HTTP client.
func NewTopHubScanner(client *http.Client) *TopHubScanner {
	return &TopHubScanner{client: defaultClient(client), timeout: topHubTimeout}
}

// Name identifies the strategy inside the registry.
func (s *TopHubScanner) Name() string {
	return "tophub"
}

// Scan fetches the entry page and extracts title, link and rank of each row.
func (s *TopHubScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	base, err := url.Parse(req.Entry)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid tophub entry %q", req.Entry)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := fetchDocument(ctx, s.client, req.Entry)
	if err != nil {
		return nil, fmt.Errorf("tophub: %w", err)
	}
	return extractTopHub(doc, base, req), nil
}

func extractTopHub(doc *goquery.Document, base *url.URL, req scanner.Request) []domain.Candidate {
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = topHubSourceID
	}
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = domain.SourceTypeD
	}

	var items []domain.Candidate
	doc.Find(".weui_panel_bd .weui_media_box").Each(func(_ int, box *goquery.Selection) {
		link := box.Find(".weui_media_title").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || href == "" {
			return
		}

		abs, err := base.Parse(href)
		if err != nil {
			return
		}

		item := domain.Candidate{
			Title:      title,
			URL:        abs.String(),
			SourceID:   sourceID,
			SourceType: sourceType,
			Via:        topHubVia,
		}
		rankText := strings.TrimSpace(box.Find(".weui_media_desc").First().Text())
		if m := rankExpr.FindString(rankText); m != "" {
			if rank, err := strconv.Atoi(m); err == nil {
				item.HeatRank = &rank
			}
		}
		items = append(items, item)
	})
	return items
}
