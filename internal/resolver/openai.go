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
	defaultOpenAIBaseURL   = "https://api.openai.com"
	openAIChatCompletePath = "/v1/chat/completions"
)

type openAIResolver struct {
	cfg    Config
	client *http.Client
}

func newOpenAIResolver(cfg Config) (*openAIResolver, error) {
	return &openAIResolver{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (r *openAIResolver) Provider() string { return string(ProviderOpenAI) }

func (r *openAIResolver) Resolve(ctx context.Context, text string) (*schema.Intent, error) {
	body := map[string]any{
		"model": r.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(text)},
		},
		"max_tokens":  512,
		"temperature": 0.1,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	baseURL := r.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	// BaseURL が既に /v1 で終わっている場合は /chat/completions のみ付加
	// Ollama: http://server:11434/v1 → http://server:11434/v1/chat/completions
	base := strings.TrimRight(baseURL, "/")
	var url string
	if strings.HasSuffix(base, "/v1") {
		url = base + "/chat/completions"
	} else {
		url = base + openAIChatCompletePath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API error %d: %s", resp.StatusCode, string(respBytes))
	}

	return parseOpenAIResponse(respBytes)
}

// openAIResponse は Chat Completions API のレスポンス構造体（必要最小限）。
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func parseOpenAIResponse(data []byte) (*schema.Intent, error) {
	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	intent, err := parseIntentJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai: parse intent: %w", err)
	}
	return intent, nil
}
