// Package entity defines the canonical entity model and its deterministic ID scheme.
//
// ID は入力のみから決定的に導出される。同じ入力は常に同じ ID を返し、
// グローバル状態を一切持たない。ストアの upsert キーとして使われる。
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// sanitize は ID セグメント用に文字列を正規化する。
// 小文字化し、[a-z0-9] 以外のすべての文字を '_' に置換する。
func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// shortHash は生の文字列の SHA-256 先頭 8 hex 文字を返す。
// URL やファイルパスのように sanitize では衝突しやすい入力に使う。
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// HostID はホストの canonical ID を返す。
// 例: "192.168.1.10" → "host_192_168_1_10"
func HostID(addr string) string {
	return "host_" + sanitize(addr)
}

// PortID はポートの canonical ID を返す。
// 例: HostID + 80 + "tcp" → "host_192_168_1_10_port_80_tcp"
func PortID(hostID string, number int, proto string) string {
	return fmt.Sprintf("%s_port_%d_%s", hostID, number, sanitize(proto))
}

// ServiceID はサービスの canonical ID を返す。
// 例: PortID + "http" → "..._port_80_tcp_service_http"
func ServiceID(portID, name string) string {
	return portID + "_service_" + sanitize(name)
}

// VulnerabilityID は脆弱性の canonical ID を返す。
// 例: ServiceID + "CVE-2024-1234" → "..._vuln_cve_2024_1234"
func VulnerabilityID(serviceID, cveOrName string) string {
	return serviceID + "_vuln_" + sanitize(cveOrName)
}

// WebResourceID は Web リソースの canonical ID を返す。
// URL は sanitize すると衝突するためハッシュ短縮形を使う。
func WebResourceID(serviceID, rawURL string) string {
	return serviceID + "_web_hash_" + shortHash(rawURL)
}

// DNSRecordID は DNS レコードの canonical ID を返す。
// 例: "example.com" → "dns_example_com"
func DNSRecordID(domain string) string {
	return "dns_" + sanitize(domain)
}

// CertificateID は証明書の canonical ID を返す。
func CertificateID(fingerprint string) string {
	return "cert_" + sanitize(fingerprint)
}

// CredentialID は認証情報の canonical ID を返す。
func CredentialID(user, serviceID string) string {
	return "cred_" + sanitize(user) + "_" + serviceID
}

// FileID はホスト上のファイルの canonical ID を返す。
// パスは区切り文字が多く sanitize では読めなくなるためハッシュ短縮形を使う。
func FileID(hostID, path string) string {
	return "file_" + hostID + "_hash_" + shortHash(path)
}
