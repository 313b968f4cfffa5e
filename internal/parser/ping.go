package parser

import (
	"regexp"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// PingParser は ping の出力から応答ホストを抽出する。
//
// Unix 形式 "64 bytes from 192.168.1.10:" と
// Windows 形式 "Reply from 192.168.1.10:" の両方を受け付ける。
type PingParser struct{}

var pingReplyRe = regexp.MustCompile(`(?i)(?:reply|bytes) from ([\w.:-]+?)[:\s]`)

func (p *PingParser) Parse(ctx Context, output string) (*Result, error) {
	b := newBuilder(ctx)

	for _, line := range strings.Split(output, "\n") {
		m := pingReplyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		addr := strings.TrimSuffix(m[1], ":")
		b.host(addr, 0.95, entity.HostData{})
	}
	return b.result()
}
