package parser

import (
	"regexp"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// DNSLookupParser は nslookup の出力から DNS レコードを抽出する。
//
// 先頭の Server/Address ブロックは問い合わせ先 DNS サーバーの情報なので、
// 最初の "Name:" 行が現れるまでの Address 行は無視する。
type DNSLookupParser struct{}

func (p *DNSLookupParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)

	name := ""
	var values []string

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if after, ok := strings.CutPrefix(line, "Name:"); ok {
			name = strings.TrimSpace(after)
			continue
		}
		if name == "" {
			continue
		}
		if after, ok := strings.CutPrefix(line, "Address:"); ok {
			addr := strings.TrimSpace(after)
			// "93.184.216.34#53" 形式のポートサフィックスを落とす
			addr, _, _ = strings.Cut(addr, "#")
			if addr != "" {
				values = append(values, addr)
			}
		}
		if after, ok := strings.CutPrefix(line, "Addresses:"); ok {
			if addr := strings.TrimSpace(after); addr != "" {
				values = append(values, addr)
			}
		}
	}

	if name == "" || len(values) == 0 {
		return nil, ErrNoData
	}

	recordID := b.add(entity.Entity{
		ID:         entity.DNSRecordID(name),
		Type:       entity.TypeDNSRecord,
		Confidence: 1.0,
		Data:       entity.DNSRecordData{Domain: name, RecordType: "A", Values: values},
	})
	for _, addr := range values {
		hostID := b.host(addr, 0.9, entity.HostData{Hostname: name})
		b.relate(recordID, hostID, relResolvesTo)
	}
	return b.result()
}

// SubdomainEnumParser はサブドメイン列挙の出力を抽出する。
// "sub.example.com 1.2.3.4" / "Found: sub.example.com -> 1.2.3.4" の両形式を受け付ける。
type SubdomainEnumParser struct{}

var subdomainRe = regexp.MustCompile(`([\w-]+(?:\.[\w-]+)+)\s+(?:->\s+)?(\d{1,3}(?:\.\d{1,3}){3})`)

func (p *SubdomainEnumParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)

	for _, line := range strings.Split(output, "\n") {
		m := subdomainRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		domain, addr := m[1], m[2]

		recordID := b.add(entity.Entity{
			ID:         entity.DNSRecordID(domain),
			Type:       entity.TypeDNSRecord,
			Confidence: 0.9,
			Data:       entity.DNSRecordData{Domain: domain, RecordType: "A", Values: []string{addr}},
		})
		hostID := b.host(addr, 0.85, entity.HostData{Hostname: domain})
		b.relate(recordID, hostID, relResolvesTo)
	}
	return b.result()
}
