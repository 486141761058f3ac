package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"HotspotLite/internal/classify"
	"HotspotLite/internal/config"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

const (
	completionsPath   = "/v1/chat/completions"
	defaultBaseURL    = "https://api.deepseek.com"
	defaultModel      = "deepseek-chat"
	defaultConfidence = 0.7
	systemPrompt      = "你将对中文新闻进行精确分类，只能输出JSON，不要多余文本。"
)

var jsonObjectExpr = regexp.MustCompile(`\{[\s\S]*\}`)

// ChatClassifier implements ports.FallbackClassifier backed by an
// OpenAI-compatible chat completions API.
type ChatClassifier struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	table       classify.Table
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.FallbackClassifier = (*ChatClassifier)(nil)

// NewChatClassifier builds a client from configuration. Labels returned by
// the model are checked against table.
func NewChatClassifier(cfg config.ChatConfig, table classify.Table, logger *slog.Logger) *ChatClassifier {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &ChatClassifier{
		baseURL:     baseURL,
		model:       model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		table:       table,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

// ClassifyFallback asks the model for a label. Any failure yields domain.Unavailable().
func (c *ChatClassifier) ClassifyFallback(ctx context.Context, title, summary string) domain.FallbackOutcome {
	if c == nil || c.apiKey == "" {
		return domain.Unavailable()
	}

	content, err := c.complete(ctx, c.userPrompt(title, summary))
	if err != nil {
		c.debug("chat fallback failed", "error", err)
		return domain.Unavailable()
	}

	label, confidence, err := parseAnswer(content)
	if err != nil {
		c.debug("chat fallback answer unusable", "error", err)
		return domain.Unavailable()
	}

	cls := c.table.Coerce(label, confidence)
	return domain.Classified(cls.NewsType, cls.Confidence)
}

func (c *ChatClassifier) userPrompt(title, summary string) string {
	var b strings.Builder
	b.WriteString("你是新闻分类助手。只在以下固定标签中选一类并给出0-1置信度：")
	b.WriteString(strings.Join(c.table.Labels(), "、"))
	b.WriteString("。\n标题: ")
	b.WriteString(title)
	b.WriteString("\n摘要: ")
	b.WriteString(summary)
	b.WriteString("\n仅返回 JSON，如 {\"category\":\"财经\",\"confidence\":0.82}")
	return b.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatClassifier) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// parseAnswer pulls the first JSON object out of free text. The label may be
// under "category" or "type"; a missing or zero confidence means 0.7.
func parseAnswer(content string) (string, float64, error) {
	raw := jsonObjectExpr.FindString(content)
	if raw == "" {
		return "", 0, fmt.Errorf("no JSON object in answer")
	}

	var answer struct {
		Category   any `json:"category"`
		Type       any `json:"type"`
		Confidence any `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return "", 0, fmt.Errorf("decode answer: %w", err)
	}

	label := strings.TrimSpace(stringValue(answer.Category))
	if label == "" {
		label = strings.TrimSpace(stringValue(answer.Type))
	}

	confidence := defaultConfidence
	switch v := answer.Confidence.(type) {
	case float64:
		if v != 0 {
			confidence = v
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && parsed != 0 {
			confidence = parsed
		}
	}
	return label, confidence, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func (c *ChatClassifier) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
