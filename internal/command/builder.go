// Package command assembles and validates the final argv for a tool run.
//
// ビルダーはポリシーゲートを通過した ToolSpec だけを受け取る前提だが、
// ここでも独立に検証する。シェルは一切経由しないため、ここで弾くのは
// argv 経由でツール自身に解釈される危険な入力である。
package command

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/0x6d61/sentinel/pkg/schema"
)

const (
	// maxCommandLen は組み立て後のコマンド文字列の上限。
	// 個々の引数にも同じ上限を適用する。
	maxCommandLen = 512

	// targetPlaceholder は args 内で唯一許可されるプレースホルダー。
	targetPlaceholder = "{target}"
)

// dangerousChars はターゲットと引数に含まれてはならない文字。
// シェルメタ文字・展開記号・制御文字。
const dangerousChars = ";|&$`(){}<>\n\r\x00"

// ターゲットとして受け付ける形。IPv4（CIDR 付き可）・ドメイン・http(s) URL の
// いずれかに一致しないターゲットは拒否する。
var (
	ipPattern = regexp.MustCompile(
		`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}` +
			`(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)` +
			`(?:/(?:3[0-2]|[12]?[0-9]))?$`)
	domainPattern = regexp.MustCompile(
		`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	urlPattern = regexp.MustCompile(
		`^https?://[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?` +
			`(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*` +
			`(?::\d{1,5})?(?:/[^\s]*)?$`)
)

var (
	ErrToolNotAllowed  = errors.New("command: tool is not in the allowed set")
	ErrEmptyTarget     = errors.New("command: target is empty")
	ErrInvalidTarget   = errors.New("command: target must be an IPv4 address, CIDR range, domain or http(s) URL")
	ErrDangerousChar   = errors.New("command: dangerous character")
	ErrInvalidArgument = errors.New("command: invalid argument")
	ErrTooLong         = errors.New("command: assembled command exceeds length limit")
)

// Builder は許可バイナリ集合を持つコマンドビルダー。
type Builder struct {
	allowed map[string]bool
}

// NewBuilder は許可するツール名一覧からビルダーを構築する。
// 一覧はレジストリの ToolNames を渡すのが前提。
func NewBuilder(allowedTools []string) *Builder {
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}
	return &Builder{allowed: allowed}
}

// Build は ToolSpec を検証して最終コマンドを返す。
//
// 検証順序:
//  1. ツール名が許可集合に含まれる
//  2. ターゲットがあれば危険文字がなく、IPv4・ドメイン・URL のいずれかの形
//  3. 全引数が非空・512 文字以内で、危険文字も制御文字も含まない
//     （{target} プレースホルダーは検査対象から除外）
//  4. 組み立て後の全長が 512 文字以内
//
// ターゲットはパラメーターだけで駆動するツール（sqlmap -u など）では
// 空でもよい。その場合は挿入もプレースホルダー展開も行わない。
func (b *Builder) Build(spec *schema.ToolSpec) (*schema.FinalCommand, error) {
	if !b.allowed[spec.ToolName] {
		return nil, fmt.Errorf("%w: %q", ErrToolNotAllowed, spec.ToolName)
	}

	target := stripQuotes(spec.Target)
	if target != "" {
		if err := validateTarget(target); err != nil {
			return nil, err
		}
	}
	for _, arg := range spec.Args {
		if err := validateArg(arg); err != nil {
			return nil, err
		}
	}

	args := make([]string, 0, len(spec.Args)+2)
	consumed := false
	for _, arg := range spec.Args {
		if strings.Contains(arg, targetPlaceholder) {
			if target == "" {
				return nil, fmt.Errorf("%w: args reference %s", ErrEmptyTarget, targetPlaceholder)
			}
			arg = strings.ReplaceAll(arg, targetPlaceholder, target)
			consumed = true
		}
		args = append(args, arg)
	}

	if !consumed && target != "" {
		args = insertTarget(spec.ToolName, args, target)
	}

	display := spec.ToolName + " " + strings.Join(args, " ")
	if len(display) > maxCommandLen {
		return nil, fmt.Errorf("%w: %d chars", ErrTooLong, len(display))
	}

	return &schema.FinalCommand{
		Tool:    spec.ToolName,
		Args:    args,
		Display: display,
	}, nil
}

// validateTarget は危険文字検査と形の分類を行う。
func validateTarget(target string) error {
	if c, ok := findDangerous(target); ok {
		return fmt.Errorf("%w %q in target %q", ErrDangerousChar, c, target)
	}
	if ipPattern.MatchString(target) ||
		domainPattern.MatchString(target) ||
		urlPattern.MatchString(target) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
}

// validateArg は 1 引数分の検査。空・過長・危険文字・制御文字を弾く。
func validateArg(arg string) error {
	if strings.TrimSpace(arg) == "" {
		return fmt.Errorf("%w: empty argument", ErrInvalidArgument)
	}
	if len(arg) > maxCommandLen {
		return fmt.Errorf("%w: argument exceeds %d chars", ErrInvalidArgument, maxCommandLen)
	}
	// プレースホルダー自体の波括弧は検査対象から外す
	probe := strings.ReplaceAll(arg, targetPlaceholder, "")
	if c, ok := findDangerous(probe); ok {
		return fmt.Errorf("%w %q in arg %q", ErrDangerousChar, c, arg)
	}
	for _, r := range probe {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character %q in arg %q", ErrInvalidArgument, r, arg)
		}
	}
	return nil
}

// insertTarget はプレースホルダーが消費されなかった場合のターゲット挿入。
// gobuster は -u、nikto は -h を取る。既に同フラグがあれば挿入しない。
// それ以外のツールは位置引数として末尾に付ける。
func insertTarget(tool string, args []string, target string) []string {
	switch tool {
	case "gobuster":
		if !slices.Contains(args, "-u") {
			return append(args, "-u", target)
		}
	case "nikto":
		if !slices.Contains(args, "-h") {
			return append(args, "-h", target)
		}
	default:
		return append(args, target)
	}
	return args
}

// stripQuotes はターゲットから引用符を取り除き前後の空白を落とす。
func stripQuotes(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `'`, "")
	return strings.TrimSpace(s)
}

// findDangerous は最初に見つかった危険文字を返す。
func findDangerous(s string) (byte, bool) {
	if i := strings.IndexAny(s, dangerousChars); i >= 0 {
		return s[i], true
	}
	return 0, false
}
