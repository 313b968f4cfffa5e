package coordinator

import "regexp"

// Blacklist は最終コマンド文字列に対する正規表現の拒否リスト。
// ポリシーゲートとビルダー検証の後段に置く最後の防壁で、
// どのパターンで遮断したかを呼び出し側へ返す。
type Blacklist struct {
	rules []blacklistRule
}

type blacklistRule struct {
	source string
	re     *regexp.Regexp
}

// NewBlacklist は patterns をコンパイルして Blacklist を返す。
// コンパイルできなかったパターンは第 2 戻り値で報告し、リストには含めない。
func NewBlacklist(patterns []string) (*Blacklist, []string) {
	bl := &Blacklist{rules: make([]blacklistRule, 0, len(patterns))}
	var invalid []string
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		bl.rules = append(bl.rules, blacklistRule{source: p, re: re})
	}
	return bl, invalid
}

// DefaultBlacklistPatterns は組み込みの拒否パターン。
// 設定ファイルで追加できる。
var DefaultBlacklistPatterns = []string{
	`rm\s+(-[rf]+\s+)*/`,
	`mkfs`,
	`dd\s+.*of=/dev/`,
	`shutdown`,
	`reboot`,
	`>\s*/dev/sd`,
	`:\(\)\s*\{.*\};`,
}

// Screen は command を全パターンと突き合わせ、最初に一致した
// パターンの文字列と true を返す。一致がなければ ("", false)。
func (b *Blacklist) Screen(command string) (string, bool) {
	for _, r := range b.rules {
		if r.re.MatchString(command) {
			return r.source, true
		}
	}
	return "", false
}
