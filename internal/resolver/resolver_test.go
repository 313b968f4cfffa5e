package resolver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0x6d61/sentinel/internal/resolver"
	"github.com/0x6d61/sentinel/pkg/schema"
)

// mockAnthropicServer は Anthropic Messages API の最低限のモックを提供する。
func mockAnthropicServer(t *testing.T, responseJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 認証ヘッダーの確認（x-api-key または Authorization: Bearer）
		apiKey := r.Header.Get("x-api-key")
		authBearer := r.Header.Get("Authorization")
		if apiKey == "" && authBearer == "" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(responseJSON)) //nolint:errcheck // テスト専用 httptest サーバー、ハードコード JSON を返すのみ
	}))
}

// mockOpenAIServer は OpenAI Chat Completions API の最低限のモックを提供する。
func mockOpenAIServer(t *testing.T, responseJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(responseJSON)) //nolint:errcheck // テスト専用 httptest サーバー
	}))
}

// anthropicResponse は Anthropic API のレスポンス JSON を組み立てるヘルパー。
func anthropicResponse(intentJSON string) string {
	return `{
		"id": "msg_test",
		"type": "message",
		"role": "assistant",
		"content": [{"type": "text", "text": "` + jsonEscape(intentJSON) + `"}],
		"model": "claude-sonnet-4-6",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`
}

// openAIResponse は OpenAI Chat Completions レスポンス JSON を組み立てるヘルパー。
func openAIResponse(intentJSON string) string {
	return `{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "` + jsonEscape(intentJSON) + `"},
			"finish_reason": "stop"
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 20}
	}`
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1]) // 前後の " を除去
}

// --- テストケース ---

func TestAnthropicResolver_Resolve_APIKey(t *testing.T) {
	intent := `{"intent":"PORT_SCAN","target":"10.0.0.5","params":{"ports":"1-1000"},"reason":"user asked for a port scan"}`
	srv := mockAnthropicServer(t, anthropicResponse(intent))
	defer srv.Close()

	r, err := resolver.New(resolver.Config{
		Provider: resolver.ProviderAnthropic,
		Model:    "claude-sonnet-4-6",
		AuthType: resolver.AuthAPIKey,
		Token:    "sk-ant-test-key",
		BaseURL:  srv.URL, // テスト用にモックサーバーを向ける
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "scan ports 1-1000 on 10.0.0.5")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if result.Type != schema.IntentPortScan {
		t.Errorf("Type: got %q, want %q", result.Type, schema.IntentPortScan)
	}
	if result.Target != "10.0.0.5" {
		t.Errorf("Target: got %q, want %q", result.Target, "10.0.0.5")
	}
	if result.Params["ports"] != "1-1000" {
		t.Errorf("params[ports]: got %q, want 1-1000", result.Params["ports"])
	}
}

func TestAnthropicResolver_Resolve_OAuthToken(t *testing.T) {
	intent := `{"intent":"DNS_LOOKUP","target":"example.com","params":{},"reason":"resolve the domain"}`
	srv := mockAnthropicServer(t, anthropicResponse(intent))
	defer srv.Close()

	r, err := resolver.New(resolver.Config{
		Provider: resolver.ProviderAnthropic,
		Model:    "claude-sonnet-4-6",
		AuthType: resolver.AuthOAuthToken, // claude auth token の出力を使う
		Token:    "sk-ant-ocp01-test",
		BaseURL:  srv.URL,
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "example.com の DNS を引いて")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Type != schema.IntentDNSLookup {
		t.Errorf("Type: got %q, want %q", result.Type, schema.IntentDNSLookup)
	}
}

func TestOpenAIResolver_Resolve(t *testing.T) {
	intent := `{"intent":"VULN_SCAN","target":"10.0.0.5","params":{},"reason":"user asked for a vulnerability scan"}`
	srv := mockOpenAIServer(t, openAIResponse(intent))
	defer srv.Close()

	r, err := resolver.New(resolver.Config{
		Provider: resolver.ProviderOpenAI,
		Model:    "gpt-4o",
		AuthType: resolver.AuthAPIKey,
		Token:    "sk-openai-test",
		BaseURL:  srv.URL,
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}

	result, err := r.Resolve(context.Background(), "check 10.0.0.5 for vulnerabilities")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Type != schema.IntentVulnScan {
		t.Errorf("Type: got %q, want %q", result.Type, schema.IntentVulnScan)
	}
}

func TestResolver_New_EmptyToken_ReturnsError(t *testing.T) {
	_, err := resolver.New(resolver.Config{
		Provider: resolver.ProviderAnthropic,
		Model:    "claude-sonnet-4-6",
		AuthType: resolver.AuthAPIKey,
		Token:    "", // トークンなし
	})
	if err == nil {
		t.Error("expected error for empty token, got nil")
	}
}

func TestResolver_New_UnknownProvider_ReturnsError(t *testing.T) {
	_, err := resolver.New(resolver.Config{
		Provider: "unknown-provider",
		Model:    "gpt-99",
		AuthType: resolver.AuthAPIKey,
		Token:    "some-token",
	})
	if err == nil {
		t.Error("expected error for unknown provider, got nil")
	}
}

func TestResolver_New_Rules_NoTokenNeeded(t *testing.T) {
	r, err := resolver.New(resolver.Config{Provider: resolver.ProviderRules})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}
	if r.Provider() != "rules" {
		t.Errorf("Provider: got %q, want rules", r.Provider())
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := resolver.LoadConfig(resolver.ConfigHint{
		Provider: resolver.ProviderAnthropic,
		Model:    "claude-sonnet-4-6",
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Token != "sk-ant-from-env" {
		t.Errorf("Token: got %q, want sk-ant-from-env", cfg.Token)
	}
	if cfg.AuthType != resolver.AuthAPIKey {
		t.Errorf("AuthType: got %q, want %q", cfg.AuthType, resolver.AuthAPIKey)
	}
}

func TestLoadConfig_OAuthEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "sk-ant-ocp01-oauth")

	cfg, err := resolver.LoadConfig(resolver.ConfigHint{
		Provider: resolver.ProviderAnthropic,
		Model:    "claude-sonnet-4-6",
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Token != "sk-ant-ocp01-oauth" {
		t.Errorf("Token: got %q, want sk-ant-ocp01-oauth", cfg.Token)
	}
	if cfg.AuthType != resolver.AuthOAuthToken {
		t.Errorf("AuthType: got %q, want %q", cfg.AuthType, resolver.AuthOAuthToken)
	}
}
