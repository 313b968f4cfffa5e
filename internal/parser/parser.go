// Package parser turns raw tool output into entities and relationships.
//
// パーサーは「データが見つからない」ことを型付きエラー ErrNoData で表現する。
// 空の成功は存在しない。パース結果が空になりうる実装はこのパッケージに置けない。
package parser

import (
	"errors"
	"fmt"
	"sort"

	"github.com/0x6d61/sentinel/internal/entity"
	"github.com/0x6d61/sentinel/pkg/schema"
)

// ErrNoData は出力からエンティティを 1 つも抽出できなかったことを示す。
// プロセス成功 + ErrNoData はコーディネーターで partial / parse_failed になる。
var ErrNoData = errors.New("parser: no data found in output")

// Context はパース対象の実行メタデータ。
type Context struct {
	Target string // 実行時のターゲット（ホスト・ドメイン・URL）
	Tool   string // ツールバイナリ名
	ExecID string // 実行 ID（エンティティの discovered_by に記録）
}

// Result はパースで得られたエンティティとリレーション。
// Entities は必ず 1 件以上。空になる場合は Parse がエラーを返す。
type Result struct {
	Entities      []entity.Entity
	Relationships []entity.Relationship
}

// Parser は 1 ツール分の出力パーサー。
type Parser interface {
	// Parse は出力を解析する。データが見つからなければ ErrNoData を返す。
	Parse(ctx Context, output string) (*Result, error)
}

// Set は名前付きパーサーの登録表と、意図種別からの対応付けを持つ。
type Set struct {
	byName   map[string]Parser
	byIntent map[schema.IntentType]string
}

// NewSet は空の Set を返す。
func NewSet() *Set {
	return &Set{
		byName:   make(map[string]Parser),
		byIntent: make(map[schema.IntentType]string),
	}
}

// Register は名前付きパーサーを登録する。重複登録はエラー。
func (s *Set) Register(name string, p Parser) error {
	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("parser: %q already registered", name)
	}
	s.byName[name] = p
	return nil
}

// Bind は意図種別をパーサー名に対応付ける。未登録の名前はエラー。
func (s *Set) Bind(intent schema.IntentType, name string) error {
	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("parser: bind %s: %q is not registered", intent, name)
	}
	s.byIntent[intent] = name
	return nil
}

// ForIntent は意図種別に対応するパーサーを返す。
func (s *Set) ForIntent(intent schema.IntentType) (Parser, bool) {
	name, ok := s.byIntent[intent]
	if !ok {
		return nil, false
	}
	return s.byName[name], true
}

// Get は名前でパーサーを返す。
func (s *Set) Get(name string) (Parser, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Names は登録済みパーサー名のソート済み一覧を返す。
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MissingFor はツールを持つのにパーサーが対応付けられていない意図を返す。
// 起動時にレジストリと突き合わせ、ログで報告するために使う。
func (s *Set) MissingFor(intents []schema.IntentType) []schema.IntentType {
	var missing []schema.IntentType
	for _, intent := range intents {
		if _, ok := s.byIntent[intent]; !ok {
			missing = append(missing, intent)
		}
	}
	return missing
}

// NewDefaultSet は組み込みパーサー一式を登録した Set を返す。
//
// WHOIS_LOOKUP / BRUTE_FORCE_* / SQL_INJECTION はパーサーを持たない。
// これらはプロセス成功時に partial / parse_failed として記録される。
func NewDefaultSet() (*Set, error) {
	s := NewSet()

	registrations := []struct {
		name string
		p    Parser
	}{
		{"ping", &PingParser{}},
		{"nmap_ping_sweep", &NmapPingSweepParser{}},
		{"nmap_port_scan", &NmapPortScanParser{}},
		{"nmap_service_detection", &NmapServiceDetectionParser{}},
		{"nmap_vuln_scan", &NmapVulnScanParser{}},
		{"dns_lookup", &DNSLookupParser{}},
		{"ssl_scan", &SSLScanParser{}},
		{"gobuster_dir", &GobusterDirParser{}},
		{"subdomain_enum", &SubdomainEnumParser{}},
		{"web_app_scan", &WebAppScanParser{}},
	}
	for _, r := range registrations {
		if err := s.Register(r.name, r.p); err != nil {
			return nil, err
		}
	}

	bindings := map[schema.IntentType]string{
		schema.IntentHostDiscovery:    "nmap_ping_sweep",
		schema.IntentPortScan:         "nmap_port_scan",
		schema.IntentServiceDetection: "nmap_service_detection",
		schema.IntentOSDetection:      "nmap_service_detection",
		schema.IntentVulnScan:         "nmap_vuln_scan",
		schema.IntentDNSLookup:        "dns_lookup",
		schema.IntentWebDirEnum:       "gobuster_dir",
		schema.IntentWebVulnScan:      "web_app_scan",
	}
	for intent, name := range bindings {
		if err := s.Bind(intent, name); err != nil {
			return nil, err
		}
	}

	return s, nil
}
