package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/scanner"
)

const (
	htmlListTimeout  = 8 * time.Second
	htmlListMaxItems = 50
	minTitleRunes    = 6
)

var defaultHrefPatterns = []string{
	`.*\.shtml$`,
	`.*\.htm$`,
	`/newsDetail_forward_\d+`,
	`/news/\d{4}-\d{2}-\d{2}/[A-Za-z0-9_-]+\.html$`,
}

var (
	mediaTitleExpr      = regexp.MustCompile(`视频|直播|Vlog|vlog|音频|图集|图说|短视频|微视频|小视频|Live|live`)
	commentaryTitleExpr = regexp.MustCompile(`评论|述评|观察|社论|观点|点评|锐评|漫评|时评|社评`)
	tipsTitleExpr       = regexp.MustCompile(`小贴士|妙招|窍门|技巧|攻略|指南|干货|这(几|些)招|这样做|收藏备用|生活常识|生活小常识|科普小知识`)
	mediaPathExpr       = regexp.MustCompile(`(?i)/video/|/shipin|/live|/photo|/pics|/picture/`)
)

// HTMLListScanner extracts news links from list pages that have no feed.
// Link text becomes the title; summaries are left empty.
type HTMLListScanner struct {
	client   *http.Client
	timeout  time.Duration
	maxItems int
}

// NewHTMLListScanner wires an HTTP client.
func NewHTMLListScanner(client *http.Client) *HTMLListScanner {
	return &HTMLListScanner{client: defaultClient(client), timeout: htmlListTimeout, maxItems: htmlListMaxItems}
}

// Name identifies the strategy inside the registry.
func (s *HTMLListScanner) Name() string {
	return "html"
}

// Scan fetches the entry page and keeps links that look like text articles
// on an allowed host.
func (s *HTMLListScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	base, err := url.Parse(req.Entry)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid html entry %q", req.Entry)
	}

	patterns := req.HrefPatterns
	if len(patterns) == 0 {
		patterns = defaultHrefPatterns
	}
	hrefExprs, err := compilePatterns(patterns)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceID, err)
	}

	hosts := req.AllowedHosts
	if len(hosts) == 0 {
		hosts = []string{base.Hostname()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := fetchDocument(ctx, s.client, req.Entry)
	if err != nil {
		return nil, fmt.Errorf("html list: %w", err)
	}

	filter := linkFilter{base: base, hosts: hosts, hrefExprs: hrefExprs}
	return filter.extract(doc, req, s.maxItems), nil
}

type linkFilter struct {
	base      *url.URL
	hosts     []string
	hrefExprs []*regexp.Regexp
}

func (f linkFilter) extract(doc *goquery.Document, req scanner.Request, limit int) []domain.Candidate {
	seen := map[string]struct{}{}
	var items []domain.Candidate

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		title := strings.TrimSpace(a.Text())
		link, ok := f.accept(strings.TrimSpace(href), title)
		if !ok {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		items = append(items, domain.Candidate{
			Title:      title,
			URL:        link,
			SourceID:   req.SourceID,
			SourceType: req.SourceType,
		})
		return len(items) < limit
	})
	return items
}

// accept applies title and URL rules and returns the absolute link.
func (f linkFilter) accept(href, title string) (string, bool) {
	if href == "" || utf8.RuneCountInString(title) < minTitleRunes {
		return "", false
	}
	if mediaTitleExpr.MatchString(title) || commentaryTitleExpr.MatchString(title) || tipsTitleExpr.MatchString(title) {
		return "", false
	}

	abs, err := f.base.Parse(href)
	if err != nil {
		return "", false
	}
	if !hostAllowed(abs.Hostname(), f.hosts) {
		return "", false
	}

	link := abs.String()
	matched := false
	for _, re := range f.hrefExprs {
		if re.MatchString(link) {
			matched = true
			break
		}
	}
	if !matched || mediaPathExpr.MatchString(link) {
		return "", false
	}
	return link, true
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid href pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
