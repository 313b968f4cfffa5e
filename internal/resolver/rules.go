package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// ターゲット抽出用のパターン。優先順位は URL → CIDR → IP → ドメイン。
var (
	urlRe    = regexp.MustCompile(`https?://[^\s"']+`)
	cidrRe   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}/\d{1,2}\b`)
	ipRe     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainRe = regexp.MustCompile(`\b[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)+\b`)

	portsRe = regexp.MustCompile(`\b(\d{1,5}(?:-\d{1,5})?(?:,\d{1,5}(?:-\d{1,5})?)*)\s*(?:番)?ポート|ports?\s+(\d{1,5}(?:-\d{1,5})?(?:,\d{1,5}(?:-\d{1,5})?)*)`)
)

// intentRule はキーワード群と意図種別の対応。先頭から順に評価し、最初の一致を採用する。
type intentRule struct {
	intent   schema.IntentType
	keywords []string
}

// ルールの並び順が優先順位。具体的な意図（SQLi・ブルートフォース）を
// 汎用的なスキャン系より先に置く。
var intentRules = []intentRule{
	{schema.IntentSQLInjection, []string{"sql injection", "sqli", "sqlmap", "sqlインジェクション"}},
	{schema.IntentBruteForceSSH, []string{"ssh brute", "brute force ssh", "sshブルート", "ssh パスワード"}},
	{schema.IntentBruteForceHTTP, []string{"http brute", "brute force http", "basic認証", "httpブルート"}},
	{schema.IntentWebDirEnum, []string{"director", "gobuster", "dir enum", "ディレクトリ探索", "ディレクトリ列挙", "隠しファイル"}},
	{schema.IntentWebVulnScan, []string{"nikto", "web vuln", "web scan", "webアプリ", "web脆弱性"}},
	{schema.IntentVulnScan, []string{"vulnerability", "vuln", "cve", "脆弱性"}},
	{schema.IntentOSDetection, []string{"os detection", "operating system", "fingerprint", "os検出", "os判定"}},
	{schema.IntentServiceDetection, []string{"service", "version", "banner", "サービス", "バージョン"}},
	{schema.IntentPortScan, []string{"port", "ポート"}},
	{schema.IntentHostDiscovery, []string{"discover", "sweep", "live host", "alive", "ホスト探索", "生存"}},
	{schema.IntentDNSLookup, []string{"dns", "resolve", "lookup", "nslookup", "名前解決"}},
	{schema.IntentWhoisLookup, []string{"whois", "registration", "登録者"}},
	{schema.IntentInfoQuery, []string{"what did", "show findings", "summarize", "何が見つかった", "結果を見せ", "まとめて"}},
}

// RuleResolver はキーワードベースの意図解決器。
// LLM が使えない環境のフォールバックで、ネットワークアクセスは一切行わない。
type RuleResolver struct{}

// NewRuleResolver は RuleResolver を返す。
func NewRuleResolver() *RuleResolver { return &RuleResolver{} }

func (r *RuleResolver) Provider() string { return string(ProviderRules) }

// Resolve はキーワード一致で意図を分類する。
// どのルールにも一致しない入力は IntentUnknown になり、エラーにはしない。
func (r *RuleResolver) Resolve(_ context.Context, text string) (*schema.Intent, error) {
	lower := strings.ToLower(text)

	intent := &schema.Intent{
		Type:   schema.IntentUnknown,
		Params: map[string]string{},
		Reason: "no keyword rule matched",
	}

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				intent.Type = rule.intent
				intent.Reason = "keyword match: " + kw
				break
			}
		}
		if intent.Type != schema.IntentUnknown {
			break
		}
	}

	intent.Target = extractTarget(text)

	if m := portsRe.FindStringSubmatch(text); m != nil {
		ports := m[1]
		if ports == "" {
			ports = m[2]
		}
		if ports != "" && intent.Type == schema.IntentPortScan {
			intent.Params["ports"] = ports
		}
	}

	return intent, nil
}

// extractTarget はテキストからターゲット表現を 1 つ取り出す。
// URL → CIDR → IP → ドメインの順で探し、最初の一致を返す。
func extractTarget(text string) string {
	if m := urlRe.FindString(text); m != "" {
		return m
	}
	if m := cidrRe.FindString(text); m != "" {
		return m
	}
	if m := ipRe.FindString(text); m != "" {
		return m
	}
	// ドメインは誤検知しやすいので、一般的な TLD らしき末尾に限る
	for _, cand := range domainRe.FindAllString(text, -1) {
		if looksLikeDomain(cand) {
			return cand
		}
	}
	return ""
}

var commonTLDs = []string{
	".com", ".net", ".org", ".io", ".dev", ".jp", ".co", ".info",
	".local", ".htb", ".lan", ".test", ".example",
}

func looksLikeDomain(s string) bool {
	lower := strings.ToLower(s)
	for _, tld := range commonTLDs {
		if strings.HasSuffix(lower, tld) {
			return true
		}
	}
	return false
}
