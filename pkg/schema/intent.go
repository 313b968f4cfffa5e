// Package schema defines the shared JSON types exchanged between the
// intent resolver, the pipeline, and external callers.
package schema

// IntentType は分類された攻撃意図の種別。
// ツールレジストリのキーとして使われる。
type IntentType string

const (
	// IntentHostDiscovery はネットワーク上の生存ホストを探索する。
	IntentHostDiscovery IntentType = "HOST_DISCOVERY"

	// IntentPortScan は対象ホストのオープンポートを列挙する。
	IntentPortScan IntentType = "PORT_SCAN"

	// IntentServiceDetection はポート上のサービスとバージョンを特定する。
	IntentServiceDetection IntentType = "SERVICE_DETECTION"

	// IntentOSDetection は対象ホストの OS を推定する。
	IntentOSDetection IntentType = "OS_DETECTION"

	// IntentVulnScan は既知脆弱性をスキャンする。
	IntentVulnScan IntentType = "VULN_SCAN"

	// IntentWebDirEnum は Web サーバーのディレクトリ/ファイルを列挙する。
	IntentWebDirEnum IntentType = "WEB_DIR_ENUM"

	// IntentWebVulnScan は Web アプリケーションの脆弱性を診断する。
	IntentWebVulnScan IntentType = "WEB_VULN_SCAN"

	// IntentDNSLookup は DNS レコードを調査する。
	IntentDNSLookup IntentType = "DNS_LOOKUP"

	// IntentWhoisLookup は WHOIS 情報を取得する。
	IntentWhoisLookup IntentType = "WHOIS_LOOKUP"

	// IntentBruteForceSSH は SSH 認証へのブルートフォースを行う。
	IntentBruteForceSSH IntentType = "BRUTE_FORCE_SSH"

	// IntentBruteForceHTTP は HTTP 認証へのブルートフォースを行う。
	IntentBruteForceHTTP IntentType = "BRUTE_FORCE_HTTP"

	// IntentSQLInjection は SQL インジェクションを検査する。
	IntentSQLInjection IntentType = "SQL_INJECTION"

	// IntentInfoQuery は保存済みデータへの照会のみで、ツールは実行しない。
	IntentInfoQuery IntentType = "INFO_QUERY"

	// IntentUnknown は分類できなかった入力。ツールは実行しない。
	IntentUnknown IntentType = "UNKNOWN"
)

// Intent is the JSON payload emitted by the resolver.
//
// Resolver は常に以下の形式で応答する:
//
//	{
//	  "intent": "PORT_SCAN",
//	  "target": "192.168.1.10",
//	  "params": {"ports": "1-1000"},
//	  "reason": "user asked for a port scan"
//	}
type Intent struct {
	Type   IntentType        `json:"intent"`
	Target string            `json:"target,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	Reason string            `json:"reason,omitempty"`
}
