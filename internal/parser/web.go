package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// GobusterDirParser は gobuster dir の出力から発見パスを抽出する。
//
// 行形式: "/admin                (Status: 301) [Size: 314]"
type GobusterDirParser struct{}

var gobusterLineRe = regexp.MustCompile(`^(/\S*)\s+\(Status:\s*(\d+)\)(?:\s+\[Size:\s*(\d+)\])?`)

func (p *GobusterDirParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	serviceID := ""

	base := strings.TrimRight(ctx.Target, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		m := gobusterLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		status, _ := strconv.Atoi(m[2])
		var size int64
		if m[3] != "" {
			size, _ = strconv.ParseInt(m[3], 10, 64)
		}

		if serviceID == "" {
			serviceID = b.webServiceChain(base)
		}
		b.webResource(serviceID, base+m[1], entity.WebResourceData{
			StatusCode: status,
			Size:       size,
		})
	}
	return b.result()
}

// WebAppScanParser は nikto の出力から Web アプリの所見を抽出する。
//
// nikto の所見行は "+ " で始まる。"+ Server:" 行はサービス情報として扱い、
// それ以外の所見は脆弱性エンティティにする。
type WebAppScanParser struct{}

var niktoServerRe = regexp.MustCompile(`^\+ Server:\s*(.+)$`)

func (p *WebAppScanParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	serviceID := ""
	serverBanner := ""

	ensureService := func() string {
		if serviceID == "" {
			serviceID = b.webServiceChain(ctx.Target)
		}
		return serviceID
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+ ") {
			continue
		}

		if m := niktoServerRe.FindStringSubmatch(line); m != nil {
			serverBanner = strings.TrimSpace(m[1])
			continue
		}

		finding := strings.TrimPrefix(line, "+ ")
		// "+ Target IP:" のようなメタ行は所見ではない
		if strings.HasPrefix(finding, "Target ") || strings.HasPrefix(finding, "Start Time") ||
			strings.HasPrefix(finding, "End Time") || strings.HasPrefix(finding, "1 host(s) tested") {
			continue
		}

		info := ExtractCVEInfo(finding)
		severity := info.Severity
		if severity == "" {
			severity = "low"
		}

		title := finding
		if i := strings.Index(title, ":"); i > 0 && i < 60 {
			title = title[:i]
		}
		b.vuln(ensureService(), title, entity.VulnData{
			Title:       title,
			Severity:    severity,
			CVSS:        info.CVSS,
			RiskScore:   RiskScore(0.7, severity),
			CVE:         strings.Join(info.CVEIDs, ","),
			Description: finding,
		})
	}

	if serverBanner != "" {
		v := ParseServiceVersion(strings.ReplaceAll(serverBanner, "/", " "))
		id := ensureService()
		// サービスエンティティのバナーを書き換える
		for i := range b.entities {
			if b.entities[i].ID != id {
				continue
			}
			data, _ := b.entities[i].Data.(entity.ServiceData)
			data.Banner = serverBanner
			data.Product = v.Product
			data.Version = v.Version
			data.Extra = v.Extra
			b.entities[i].Data = data
		}
	}
	return b.result()
}
