package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// systemPrompt は意図分類用のシステムプロンプト。
// ツールの選択やコマンドの組み立ては LLM に任せず、分類だけをさせる。
const systemPrompt = `You are an intent classifier for an authorized security assessment assistant.

Given a user's instruction, classify it into exactly one intent and extract the target.

RESPONSE FORMAT (strict JSON, no markdown):
{
  "intent": "<INTENT>",
  "target": "host, domain or URL",
  "params": {"key": "value"},
  "reason": "brief reasoning (1 sentence)"
}

INTENTS:
- HOST_DISCOVERY:     find live hosts on a network range
- PORT_SCAN:          enumerate open ports on a host (params: ports)
- SERVICE_DETECTION:  identify service names and versions
- OS_DETECTION:       fingerprint the operating system
- VULN_SCAN:          scan a host for known vulnerabilities
- WEB_DIR_ENUM:       enumerate web directories and files (params: wordlist, extensions)
- WEB_VULN_SCAN:      scan a web application for vulnerabilities (params: port)
- DNS_LOOKUP:         resolve DNS records for a domain
- WHOIS_LOOKUP:       fetch WHOIS registration data
- BRUTE_FORCE_SSH:    brute force SSH credentials (params: username, userlist, password, passlist)
- BRUTE_FORCE_HTTP:   brute force HTTP authentication (params: username, userlist, password, passlist)
- SQL_INJECTION:      test a URL for SQL injection (params: url, data)
- INFO_QUERY:         question about already-collected findings; no tool runs
- UNKNOWN:            cannot be classified; no tool runs

RULES:
- Always respond with valid JSON only, no prose outside JSON.
- Pick UNKNOWN when the instruction does not map to any intent. Never guess.
- "target" must be copied from the user's text, never invented.
- Only include params the user actually mentioned.

EXAMPLES:
{"intent":"PORT_SCAN","target":"10.0.0.5","params":{"ports":"1-1000"},"reason":"user asked to scan ports 1-1000"}
{"intent":"DNS_LOOKUP","target":"example.com","params":{},"reason":"user asked to resolve the domain"}
{"intent":"UNKNOWN","target":"","params":{},"reason":"instruction is unrelated to assessment"}`

// buildPrompt はユーザー指示文からプロンプトを組み立てる。
func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("## User Instruction\n")
	sb.WriteString(text)
	sb.WriteString("\n\nClassify the intent and respond with JSON only.")
	return sb.String()
}

// jsonBlockRe は LLM がコードブロックで JSON を返した場合に抽出するパターン。
var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*({.*?})\\s*```")

// parseIntentJSON は LLM のレスポンステキストから schema.Intent を抽出・パースする。
// LLM が JSON をコードブロックで囲んで返した場合も処理する。
func parseIntentJSON(text string) (*schema.Intent, error) {
	text = strings.TrimSpace(text)

	// コードブロック内の JSON を取り出す試み
	if m := jsonBlockRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}

	// 先頭の { から末尾の } までを抽出（前後にテキストがある場合の対策）
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	var intent schema.Intent
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		return nil, fmt.Errorf("invalid JSON from LLM: %w\nraw: %s", err, text)
	}

	if intent.Type == "" {
		return nil, fmt.Errorf("LLM response missing 'intent' field: %s", text)
	}

	return &intent, nil
}
