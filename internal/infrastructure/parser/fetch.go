package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 HotspotLite/1.0"

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 20 * time.Second}
	}
	return client
}

// openPage issues a GET and returns the body of a 200 response. The caller closes it.
func openPage(ctx context.Context, client *http.Client, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}
	return resp.Body, nil
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	body, err := openPage(ctx, client, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
