package parser

import (
	"slices"
	"testing"
)

// TestExtractCVEInfo は CVE ID・CVSS・深刻度の抽出をテストする。
func TestExtractCVEInfo(t *testing.T) {
	tests := []struct {
		text         string
		wantCVEs     []string
		wantCVSS     float64
		wantSeverity string
	}{
		{
			"CVE-2021-44228 Log4Shell vulnerability CVSS: 10.0",
			[]string{"CVE-2021-44228"}, 10.0, "critical",
		},
		{
			"Multiple vulnerabilities: CVE-2019-11510, CVE-2019-11539 CVSS: 8.5",
			[]string{"CVE-2019-11510", "CVE-2019-11539"}, 8.5, "high",
		},
		{
			"SSL vulnerability detected (medium severity)",
			nil, 0, "medium",
		},
		{
			"Critical security issue found",
			nil, 0, "critical",
		},
	}

	for _, tt := range tests {
		got := ExtractCVEInfo(tt.text)
		if !slices.Equal(got.CVEIDs, tt.wantCVEs) {
			t.Errorf("ExtractCVEInfo(%q).CVEIDs = %v, want %v", tt.text, got.CVEIDs, tt.wantCVEs)
		}
		if got.CVSS != tt.wantCVSS {
			t.Errorf("ExtractCVEInfo(%q).CVSS = %v, want %v", tt.text, got.CVSS, tt.wantCVSS)
		}
		if got.Severity != tt.wantSeverity {
			t.Errorf("ExtractCVEInfo(%q).Severity = %q, want %q", tt.text, got.Severity, tt.wantSeverity)
		}
	}
}

// TestRiskScore は確度×深刻度重みのスコア計算をテストする。
func TestRiskScore(t *testing.T) {
	tests := []struct {
		confidence float64
		severity   string
		want       float64
	}{
		{1.0, "critical", 10.0},
		{0.9, "high", 7.65},
		{0.8, "medium", 4.8},
		{1.0, "low", 3.0},
		{0.5, "critical", 5.0},
	}
	for _, tt := range tests {
		if got := RiskScore(tt.confidence, tt.severity); got != tt.want {
			t.Errorf("RiskScore(%v, %q) = %v, want %v", tt.confidence, tt.severity, got, tt.want)
		}
	}
}

// TestParseServiceVersion はバージョン文字列の分解をテストする。
func TestParseServiceVersion(t *testing.T) {
	tests := []struct {
		in          string
		product     string
		version     string
		extra       string
	}{
		{"OpenSSH 8.2p1 Ubuntu 4ubuntu0.5", "OpenSSH", "8.2p1", "Ubuntu 4ubuntu0.5"},
		{"Apache httpd 2.4.41", "Apache", "2.4.41", ""},
		{"nginx 1.18.0", "nginx", "1.18.0", ""},
		{"MySQL 5.7.33-0ubuntu0.18.04.1", "MySQL", "5.7.33-0ubuntu0.18.04.1", ""},
	}
	for _, tt := range tests {
		got := ParseServiceVersion(tt.in)
		if got.Product != tt.product || got.Version != tt.version || got.Extra != tt.extra {
			t.Errorf("ParseServiceVersion(%q) = %+v, want {%s %s %s}", tt.in, got, tt.product, tt.version, tt.extra)
		}
	}
}

// TestAnalyzeBanner はバナーからのサービス種別と OS ヒントの推定をテストする。
func TestAnalyzeBanner(t *testing.T) {
	tests := []struct {
		banner      string
		serviceType string
		osHint      string
	}{
		{"SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5", "ssh", "Ubuntu"},
		{"220 ProFTPD 1.3.5 Server (Debian)", "ftp", "Debian"},
		{"HTTP/1.1 200 OK\r\nServer: nginx/1.18.0 (Ubuntu)", "http", "Ubuntu"},
	}
	for _, tt := range tests {
		got := AnalyzeBanner(tt.banner)
		if got.ServiceType != tt.serviceType {
			t.Errorf("AnalyzeBanner(%q).ServiceType = %q, want %q", tt.banner, got.ServiceType, tt.serviceType)
		}
		if !slices.Contains(got.OSHints, tt.osHint) {
			t.Errorf("AnalyzeBanner(%q).OSHints = %v, want containing %q", tt.banner, got.OSHints, tt.osHint)
		}
	}
}
