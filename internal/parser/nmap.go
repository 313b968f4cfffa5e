package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// scanReportRe は nmap 出力のホストセクション開始行。
// "Nmap scan report for example.com (192.168.1.10)" の形式もある。
var scanReportRe = regexp.MustCompile(`^Nmap scan report for (\S+)(?: \((\S+)\))?$`)

// portLineRe は "80/tcp   open  http  Apache httpd 2.4.41" 形式のポート行。
var portLineRe = regexp.MustCompile(`^(\d+)/(tcp|udp)\s+open\s+(\S+)\s*(.*)$`)

// osDetailsRe は nmap -O の OS 推定行。
var osDetailsRe = regexp.MustCompile(`^OS details: (.+)$`)

// reportAddr はホストセクション開始行からアドレスを取り出す。
// 括弧付きの場合は IP の方を使う。
func reportAddr(line string) (string, bool) {
	m := scanReportRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if m[2] != "" {
		return m[2], true
	}
	return m[1], true
}

// NmapPingSweepParser は nmap -sn の出力から生存ホストを抽出する。
type NmapPingSweepParser struct{}

func (p *NmapPingSweepParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	current := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if addr, ok := reportAddr(line); ok {
			current = addr
			continue
		}
		if strings.HasPrefix(line, "Host is up") && current != "" {
			b.host(current, 1.0, entity.HostData{})
			current = ""
		}
	}
	return b.result()
}

// NmapPortScanParser は nmap -sS/-sT の出力から open ポートを抽出する。
//
// ホストセクションごとにカーソルを進め、ポート行を現在のホストへ紐付ける。
// 最初のポートが見つかった時点でホストエンティティも生成する。
type NmapPortScanParser struct{}

func (p *NmapPortScanParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	current := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if addr, ok := reportAddr(line); ok {
			current = addr
			continue
		}
		if current == "" {
			continue
		}
		m := portLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		svcName := m[3]

		hostID := b.host(current, 1.0, entity.HostData{})
		portID := b.port(hostID, number, m[2], entity.PortData{State: "open", Service: svcName})
		if svcName != "" && svcName != "unknown" {
			b.service(portID, svcName, entity.ServiceData{})
		}
	}
	return b.result()
}

// NmapServiceDetectionParser は nmap -sV の出力からサービスのバージョン情報を抽出する。
// OS_DETECTION（nmap -O -sV）の "OS details:" 行もここで拾う。
type NmapServiceDetectionParser struct{}

func (p *NmapServiceDetectionParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	current := ""
	currentHostID := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if addr, ok := reportAddr(line); ok {
			current = addr
			currentHostID = ""
			continue
		}
		if current == "" {
			continue
		}

		if m := osDetailsRe.FindStringSubmatch(line); m != nil {
			currentHostID = b.host(current, 1.0, entity.HostData{OS: m[1]})
			continue
		}

		m := portLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		svcName := m[3]
		banner := strings.TrimSpace(m[4])

		if currentHostID == "" {
			currentHostID = b.host(current, 1.0, entity.HostData{})
		}
		portID := b.port(currentHostID, number, m[2], entity.PortData{State: "open", Service: svcName})
		if svcName == "" || svcName == "unknown" {
			continue
		}

		data := entity.ServiceData{Banner: banner}
		if banner != "" {
			v := ParseServiceVersion(banner)
			data.Product = v.Product
			data.Version = v.Version
			data.Extra = v.Extra
		}
		b.service(portID, svcName, data)
	}
	return b.result()
}

// NmapVulnScanParser は nmap --script vuln の出力から脆弱性を抽出する。
//
// ポート行の後に続く "|" 始まりの NSE スクリプト出力をブロックとして集め、
// VULNERABLE を含むブロックだけを脆弱性エンティティにする。
type NmapVulnScanParser struct{}

var scriptNameRe = regexp.MustCompile(`^\|[_ ]?\s*([\w-]+):`)

func (p *NmapVulnScanParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)
	current := ""
	serviceID := ""
	scriptName := ""
	var block []string

	flush := func() {
		defer func() { block = nil; scriptName = "" }()
		if serviceID == "" || len(block) == 0 {
			return
		}
		text := strings.Join(block, "\n")
		if !strings.Contains(text, "VULNERABLE") {
			return
		}
		info := ExtractCVEInfo(text)
		severity := info.Severity
		if severity == "" {
			severity = "medium"
		}
		name := scriptName
		if len(info.CVEIDs) > 0 {
			name = info.CVEIDs[0]
		}
		if name == "" {
			name = "unknown-vuln"
		}
		b.vuln(serviceID, name, entity.VulnData{
			Title:     scriptName,
			Severity:  severity,
			CVSS:      info.CVSS,
			RiskScore: RiskScore(0.8, severity),
			CVE:       strings.Join(info.CVEIDs, ","),
		})
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)

		if addr, ok := reportAddr(line); ok {
			flush()
			current = addr
			serviceID = ""
			continue
		}

		if m := portLineRe.FindStringSubmatch(line); m != nil && current != "" {
			flush()
			number, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			hostID := b.host(current, 1.0, entity.HostData{})
			portID := b.port(hostID, number, m[2], entity.PortData{State: "open", Service: m[3]})
			serviceID = b.service(portID, m[3], entity.ServiceData{})
			continue
		}

		if strings.HasPrefix(line, "|") {
			if m := scriptNameRe.FindStringSubmatch(line); m != nil && scriptName == "" {
				scriptName = m[1]
			}
			block = append(block, line)
			continue
		}

		flush()
	}
	flush()

	return b.result()
}
