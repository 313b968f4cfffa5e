package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0x6d61/sentinel/pkg/schema"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicMessagesPath   = "/v1/messages"
	anthropicVersion        = "2023-06-01"
)

type anthropicResolver struct {
	cfg    Config
	client *http.Client
}

func newAnthropicResolver(cfg Config) (*anthropicResolver, error) {
	return &anthropicResolver{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (r *anthropicResolver) Provider() string { return string(ProviderAnthropic) }

func (r *anthropicResolver) Resolve(ctx context.Context, text string) (*schema.Intent, error) {
	body := map[string]any{
		"model":      r.cfg.Model,
		"max_tokens": 512,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(text)},
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	baseURL := r.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + anthropicMessagesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)

	// 認証方式に応じてヘッダーを設定する。
	// AuthAPIKey    → x-api-key ヘッダー（標準 API キー）
	// AuthOAuthToken → Authorization: Bearer + OAuth 必須ヘッダー（claude setup-token の出力）
	switch r.cfg.AuthType {
	case AuthOAuthToken:
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
		req.Header.Set("anthropic-beta", "oauth-2025-04-20")
		req.Header.Set("anthropic-dangerous-direct-browser-access", "true")
	default:
		req.Header.Set("x-api-key", r.cfg.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: API error %d: %s", resp.StatusCode, string(respBytes))
	}

	return parseAnthropicResponse(respBytes)
}

// anthropicResponse は Anthropic Messages API のレスポンス構造体（必要最小限）。
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func parseAnthropicResponse(data []byte) (*schema.Intent, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		intent, err := parseIntentJSON(block.Text)
		if err != nil {
			return nil, fmt.Errorf("anthropic: parse intent: %w", err)
		}
		return intent, nil
	}

	return nil, fmt.Errorf("anthropic: no text content in response")
}
