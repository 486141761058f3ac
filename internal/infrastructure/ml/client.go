package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"HotspotLite/internal/classify"
	"HotspotLite/internal/config"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

// Client talks to a self-hosted classification service.
type Client struct {
	endpoint string
	apiKey   string
	table    classify.Table
	http     *http.Client
	logger   *slog.Logger
}

var _ ports.FallbackClassifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.InferenceConfig, table classify.Table, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		table:    table,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type classifyResponse struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
}

// ClassifyFallback posts the title and summary to {endpoint}/classify.
// Any failure yields domain.Unavailable().
func (c *Client) ClassifyFallback(ctx context.Context, title, summary string) domain.FallbackOutcome {
	if c == nil || c.endpoint == "" {
		return domain.Unavailable()
	}

	payload := map[string]any{
		"title":   title,
		"summary": summary,
		"labels":  c.table.Labels(),
	}

	var resp classifyResponse
	if err := c.post(ctx, "/classify", payload, &resp); err != nil {
		c.debug("inference fallback failed", "error", err)
		return domain.Unavailable()
	}
	if strings.TrimSpace(resp.Category) == "" || resp.Confidence == nil {
		c.debug("inference fallback answer incomplete", "category", resp.Category)
		return domain.Unavailable()
	}

	cls := c.table.Coerce(resp.Category, *resp.Confidence)
	return domain.Classified(cls.NewsType, cls.Confidence)
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
