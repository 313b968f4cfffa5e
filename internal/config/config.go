package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/0x6d61/sentinel/internal/resolver"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// StoreConfig はナレッジストア（sqlite）の設定
type StoreConfig struct {
	Path       string `yaml:"path"`
	BackupDir  string `yaml:"backup_dir"`
	PruneHours int    `yaml:"prune_hours"`
}

// ResolverConfig は意図解決器の設定
type ResolverConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// AppConfig は config/config.yaml の統合設定構造
type AppConfig struct {
	Store     StoreConfig    `yaml:"store"`
	Resolver  ResolverConfig `yaml:"resolver"`
	Blacklist []string       `yaml:"blacklist"`
}

// applyDefaults はゼロ値のフィールドにデフォルト値を適用する
func (c *AppConfig) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "sentinel.db"
	}
	if c.Store.BackupDir == "" {
		c.Store.BackupDir = "backups"
	}
	if c.Store.PruneHours == 0 {
		c.Store.PruneHours = 24 * 30
	}
	if c.Resolver.Provider == "" {
		c.Resolver.Provider = string(resolver.ProviderRules)
	}
	if c.Resolver.Model == "" {
		c.Resolver.Model = "claude-sonnet-4-6"
	}
}

// Load は config/config.yaml を読み込む。
// ${VAR} 環境変数を展開する。
// ファイルが存在しない場合はデフォルトの AppConfig を返す。
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &AppConfig{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	// 環境変数を展開（store path / backup dir の ${VAR}）
	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	cfg.Store.BackupDir = expandEnvString(cfg.Store.BackupDir)

	// デフォルト値の適用
	cfg.applyDefaults()

	return &cfg, nil
}

// expandEnvString は文字列内の ${VAR} をホスト環境変数で展開する
func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}
