// Package registry holds the static mapping from classified intents to tool
// definitions and assembles executable tool specs from them.
//
// テーブルはコード内に固定で持つ。実行できるツールとその引数の形は
// ここで閉じており、外部入力がツール選択を変えることはできない。
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// ToolDef は 1 つの意図に対応するツール定義。
type ToolDef struct {
	Name         string
	BaseArgs     []string
	RequiresRoot bool
	Risk         schema.RiskLevel
	TimeoutSec   int

	// ParamTemplates は意図パラメータごとの引数テンプレート。
	// "{value}" がパラメータ値に置換される。未知のパラメータは無視される。
	ParamTemplates map[string]string
}

// ErrNoTool は INFO_QUERY / UNKNOWN のようにツールを持たない意図の lookup 結果。
var ErrNoTool = errors.New("registry: intent has no tool")

// table は意図種別→ツール定義の固定テーブル。
var table = map[schema.IntentType]*ToolDef{
	schema.IntentHostDiscovery: {
		Name:       "nmap",
		BaseArgs:   []string{"-sn"},
		Risk:       schema.RiskLow,
		TimeoutSec: 120,
	},
	schema.IntentPortScan: {
		Name:         "nmap",
		BaseArgs:     []string{"-sS", "-sV"},
		RequiresRoot: true,
		Risk:         schema.RiskMedium,
		TimeoutSec:   600,
		ParamTemplates: map[string]string{
			"ports": "-p {value}",
		},
	},
	schema.IntentServiceDetection: {
		Name:       "nmap",
		BaseArgs:   []string{"-sV", "--version-intensity", "5"},
		Risk:       schema.RiskMedium,
		TimeoutSec: 600,
	},
	schema.IntentOSDetection: {
		Name:         "nmap",
		BaseArgs:     []string{"-O", "-sV"},
		RequiresRoot: true,
		Risk:         schema.RiskMedium,
		TimeoutSec:   600,
	},
	schema.IntentVulnScan: {
		Name:         "nmap",
		BaseArgs:     []string{"--script", "vuln"},
		RequiresRoot: true,
		Risk:         schema.RiskHigh,
		TimeoutSec:   900,
	},
	schema.IntentWebDirEnum: {
		Name:       "gobuster",
		BaseArgs:   []string{"dir", "-w", "/usr/share/wordlists/dirb/common.txt"},
		Risk:       schema.RiskMedium,
		TimeoutSec: 600,
		ParamTemplates: map[string]string{
			"wordlist":   "-w {value}",
			"extensions": "-x {value}",
		},
	},
	schema.IntentWebVulnScan: {
		Name:       "nikto",
		Risk:       schema.RiskHigh,
		TimeoutSec: 900,
		ParamTemplates: map[string]string{
			"port": "-p {value}",
		},
	},
	schema.IntentDNSLookup: {
		Name:       "nslookup",
		Risk:       schema.RiskLow,
		TimeoutSec: 60,
	},
	schema.IntentWhoisLookup: {
		Name:       "whois",
		Risk:       schema.RiskLow,
		TimeoutSec: 60,
	},
	schema.IntentBruteForceSSH: {
		Name:       "hydra",
		BaseArgs:   []string{"-t", "4"},
		Risk:       schema.RiskHigh,
		TimeoutSec: 1800,
		ParamTemplates: map[string]string{
			"username": "-l {value}",
			"userlist": "-L {value}",
			"password": "-p {value}",
			"passlist": "-P {value}",
		},
	},
	schema.IntentBruteForceHTTP: {
		Name:       "hydra",
		BaseArgs:   []string{"-t", "4"},
		Risk:       schema.RiskHigh,
		TimeoutSec: 1800,
		ParamTemplates: map[string]string{
			"username": "-l {value}",
			"userlist": "-L {value}",
			"password": "-p {value}",
			"passlist": "-P {value}",
		},
	},
	schema.IntentSQLInjection: {
		Name:       "sqlmap",
		BaseArgs:   []string{"--batch", "--level", "3"},
		Risk:       schema.RiskHigh,
		TimeoutSec: 1800,
		ParamTemplates: map[string]string{
			"url":  "-u {value}",
			"data": "--data {value}",
		},
	},
	// INFO_QUERY / UNKNOWN はテーブルに載せない（ツールなし）。
}

// Registry は固定テーブルへの読み取りアクセスを提供する。
// 依存として注入されるが、状態は持たない。
type Registry struct{}

// New は Registry を返す。
func New() *Registry { return &Registry{} }

// Lookup は意図種別に対応する ToolDef を返す。
func (r *Registry) Lookup(intent schema.IntentType) (*ToolDef, bool) {
	def, ok := table[intent]
	return def, ok
}

// Intents はツールを持つ意図種別のソート済み一覧を返す。
func (r *Registry) Intents() []schema.IntentType {
	intents := make([]schema.IntentType, 0, len(table))
	for typ := range table {
		intents = append(intents, typ)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })
	return intents
}

// ToolNames は登録済みツール名の重複なしソート済み一覧を返す。
// コマンドビルダーの許可バイナリ集合とパーサー登録チェックに使う。
func (r *Registry) ToolNames() []string {
	seen := make(map[string]bool)
	for _, def := range table {
		seen[def.Name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildToolSpec は Intent からツール実行仕様を組み立てる。
//
// パラメータはテンプレートを持つものだけ展開され、テンプレートのない
// パラメータは黙って無視される。意図がツールを持たない場合は ErrNoTool。
func (r *Registry) BuildToolSpec(intent schema.Intent) (*schema.ToolSpec, error) {
	def, ok := table[intent.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTool, intent.Type)
	}

	args := make([]string, len(def.BaseArgs))
	copy(args, def.BaseArgs)

	// パラメータ展開は名前順で行い、同じ Intent から常に同じ argv を得る。
	keys := make([]string, 0, len(intent.Params))
	for k := range intent.Params {
		if _, ok := def.ParamTemplates[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		expanded := strings.ReplaceAll(def.ParamTemplates[k], "{value}", intent.Params[k])
		args = append(args, strings.Fields(expanded)...)
	}

	return &schema.ToolSpec{
		ToolName:     def.Name,
		Args:         args,
		RequiresRoot: def.RequiresRoot,
		Risk:         def.Risk,
		TimeoutSec:   def.TimeoutSec,
		Target:       intent.Target,
		Intent:       intent.Type,
	}, nil
}
