package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// --- 脆弱性テキスト解析 ---

var (
	cveRe  = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
	cvssRe = regexp.MustCompile(`CVSS[:\s]+(\d+(?:\.\d+)?)`)
)

// CVEInfo は脆弱性テキストから抽出した CVE / CVSS / 深刻度。
type CVEInfo struct {
	CVEIDs   []string
	CVSS     float64 // 0 は未検出
	Severity string  // critical/high/medium/low、判定不能なら ""
}

// ExtractCVEInfo は脆弱性テキストから CVE ID・CVSS スコア・深刻度を抽出する。
//
// 深刻度はテキスト中のキーワードを優先し、なければ CVSS スコア帯
// （>=9.0 critical / >=7.0 high / >=4.0 medium / それ未満 low）で決める。
func ExtractCVEInfo(text string) CVEInfo {
	info := CVEInfo{}

	seen := make(map[string]bool)
	for _, cve := range cveRe.FindAllString(text, -1) {
		if !seen[cve] {
			seen[cve] = true
			info.CVEIDs = append(info.CVEIDs, cve)
		}
	}

	if m := cvssRe.FindStringSubmatch(text); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			info.CVSS = v
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "critical"):
		info.Severity = "critical"
	case strings.Contains(lower, "high"):
		info.Severity = "high"
	case strings.Contains(lower, "medium"):
		info.Severity = "medium"
	case strings.Contains(lower, "low"):
		info.Severity = "low"
	case info.CVSS >= 9.0:
		info.Severity = "critical"
	case info.CVSS >= 7.0:
		info.Severity = "high"
	case info.CVSS >= 4.0:
		info.Severity = "medium"
	case info.CVSS > 0:
		info.Severity = "low"
	}

	return info
}

// severityWeights は深刻度ごとのリスク重み。
var severityWeights = map[string]float64{
	"critical": 10.0,
	"high":     8.5,
	"medium":   6.0,
	"low":      3.0,
}

// RiskScore は確度と深刻度からリスクスコアを計算する。
// score = confidence × weight（小数第 2 位で丸め）。未知の深刻度は medium 扱い。
func RiskScore(confidence float64, severity string) float64 {
	weight, ok := severityWeights[strings.ToLower(severity)]
	if !ok {
		weight = severityWeights["medium"]
	}
	return math.Round(confidence*weight*100) / 100
}

// --- バージョン・バナー解析 ---

// ServiceVersion はバージョン文字列の分解結果。
type ServiceVersion struct {
	Product string
	Version string
	Extra   string
}

// ParseServiceVersion は "OpenSSH 8.2p1 Ubuntu 4ubuntu0.5" のような
// バージョン文字列を製品名・バージョン・付加情報に分解する。
// 最初のトークンが製品名、数字で始まる最初のトークンがバージョン。
func ParseServiceVersion(s string) ServiceVersion {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ServiceVersion{}
	}

	v := ServiceVersion{Product: tokens[0]}
	for i := 1; i < len(tokens); i++ {
		if tokens[i][0] >= '0' && tokens[i][0] <= '9' {
			v.Version = tokens[i]
			v.Extra = strings.Join(tokens[i+1:], " ")
			break
		}
	}
	return v
}

// BannerInfo はサービスバナーの解析結果。
type BannerInfo struct {
	ServiceType string   // ssh/ftp/http/smtp、判定不能なら ""
	OSHints     []string // バナー中の OS 名
}

// osHints はバナーから拾う OS 名の候補。
var osHints = []string{"Ubuntu", "Debian", "CentOS", "Red Hat", "FreeBSD", "Windows"}

// AnalyzeBanner はサービスバナーからサービス種別と OS ヒントを推定する。
func AnalyzeBanner(banner string) BannerInfo {
	info := BannerInfo{}
	lower := strings.ToLower(banner)

	switch {
	case strings.HasPrefix(banner, "SSH-") || strings.Contains(lower, "openssh"):
		info.ServiceType = "ssh"
	case strings.Contains(lower, "ftp"):
		info.ServiceType = "ftp"
	case strings.Contains(banner, "HTTP/") || strings.Contains(lower, "server:"):
		info.ServiceType = "http"
	case strings.Contains(lower, "smtp"):
		info.ServiceType = "smtp"
	}

	for _, hint := range osHints {
		if strings.Contains(banner, hint) {
			info.OSHints = append(info.OSHints, hint)
		}
	}
	return info
}
