// Package resolver は自然言語の指示を構造化された Intent に解決する。
// LLM ベース（Anthropic / OpenAI）とルールベースの実装を共通インターフェースで提供する。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// Provider は LLM プロバイダーを識別する。
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderRules     Provider = "rules"
)

// AuthType は認証方式を識別する。
type AuthType string

const (
	// AuthAPIKey は通常の API キー認証（x-api-key ヘッダー）。
	// console.anthropic.com で発行した sk-ant-api03-... 形式。
	AuthAPIKey AuthType = "api_key"

	// AuthOAuthToken は OAuth トークン認証（Authorization: Bearer ヘッダー）。
	// `claude auth token` で取得した sk-ant-ocp01-... 形式。
	AuthOAuthToken AuthType = "oauth_token"
)

// Config は Resolver の設定を保持する。
type Config struct {
	Provider Provider
	Model    string
	AuthType AuthType
	Token    string
	BaseURL  string // テスト時にモックサーバーを指定するために使う（空なら公式エンドポイント）
}

// Resolver は自然言語テキストを Intent に解決するインターフェース。
type Resolver interface {
	// Resolve はユーザーの指示文から意図を抽出する。
	// 分類できない入力には IntentUnknown を返し、エラーにはしない。
	Resolve(ctx context.Context, text string) (*schema.Intent, error)
	// Provider はプロバイダー名を返す。
	Provider() string
}

// New は Config に基づいて適切な Resolver 実装を返す。
func New(cfg Config) (Resolver, error) {
	if cfg.Provider == ProviderRules {
		return NewRuleResolver(), nil
	}
	if cfg.Token == "" {
		return nil, errors.New("resolver: token must not be empty (set ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropicResolver(cfg)
	case ProviderOpenAI:
		return newOpenAIResolver(cfg)
	default:
		return nil, fmt.Errorf("resolver: unknown provider %q (supported: anthropic, openai, rules)", cfg.Provider)
	}
}

// ConfigHint は LoadConfig へのヒント（プロバイダー・モデル）を保持する。
// 認証情報は環境変数から自動解決する。
type ConfigHint struct {
	Provider Provider
	Model    string
	BaseURL  string
}

// LoadConfig は環境変数から認証情報を解決して Config を返す。
//
// 解決優先順位（Anthropic）:
//  1. ANTHROPIC_API_KEY       → AuthAPIKey
//  2. ANTHROPIC_AUTH_TOKEN    → AuthOAuthToken（`claude auth token` の出力）
//
// 解決優先順位（OpenAI）:
//  1. OPENAI_API_KEY          → AuthAPIKey
//
// rules プロバイダーは認証不要でそのまま返す。
func LoadConfig(hint ConfigHint) (Config, error) {
	cfg := Config{
		Provider: hint.Provider,
		Model:    hint.Model,
		BaseURL:  hint.BaseURL,
	}

	switch hint.Provider {
	case ProviderRules:
		return cfg, nil

	case ProviderAnthropic:
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.Token = key
			cfg.AuthType = AuthAPIKey
			return cfg, nil
		}
		if token := os.Getenv("ANTHROPIC_AUTH_TOKEN"); token != "" {
			cfg.Token = token
			cfg.AuthType = AuthOAuthToken
			return cfg, nil
		}
		return cfg, errors.New(
			"resolver: Anthropic 認証情報が見つかりません\n" +
				"  - API キー:        export ANTHROPIC_API_KEY=sk-ant-api03-...\n" +
				"  - Claude Code 認証: export ANTHROPIC_AUTH_TOKEN=$(claude auth token)",
		)

	case ProviderOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Token = key
			cfg.AuthType = AuthAPIKey
			return cfg, nil
		}
		return cfg, errors.New(
			"resolver: OpenAI 認証情報が見つかりません\n" +
				"  export OPENAI_API_KEY=sk-...",
		)

	default:
		return cfg, fmt.Errorf("resolver: unknown provider %q", hint.Provider)
	}
}
