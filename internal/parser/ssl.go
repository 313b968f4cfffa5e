package parser

import (
	"regexp"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// SSLScanParser は openssl s_client の出力から TLS 証明書情報を抽出する。
type SSLScanParser struct{}

var (
	subjectRe     = regexp.MustCompile(`(?m)^subject=(.+)$`)
	issuerRe      = regexp.MustCompile(`(?m)^issuer=(.+)$`)
	fingerprintRe = regexp.MustCompile(`(?m)Fingerprint=([0-9A-Fa-f:]+)`)
	notBeforeRe   = regexp.MustCompile(`(?m)^\s*notBefore=(.+)$`)
	notAfterRe    = regexp.MustCompile(`(?m)^\s*notAfter=(.+)$`)
)

func (p *SSLScanParser) Parse(ctx Context, output string) (*Result, error) {
	data := entity.CertificateData{}

	if m := subjectRe.FindStringSubmatch(output); m != nil {
		data.Subject = strings.TrimSpace(m[1])
	}
	if m := issuerRe.FindStringSubmatch(output); m != nil {
		data.Issuer = strings.TrimSpace(m[1])
	}
	if m := fingerprintRe.FindStringSubmatch(output); m != nil {
		data.Fingerprint = m[1]
	}
	if m := notBeforeRe.FindStringSubmatch(output); m != nil {
		data.NotBefore = strings.TrimSpace(m[1])
	}
	if m := notAfterRe.FindStringSubmatch(output); m != nil {
		data.NotAfter = strings.TrimSpace(m[1])
	}

	if data.Fingerprint == "" && data.Subject == "" {
		return nil, ErrNoData
	}

	// フィンガープリントがない場合は subject から ID を導出する
	key := data.Fingerprint
	if key == "" {
		key = data.Subject
	}

	b := newBuilder(ctx)
	certID := b.add(entity.Entity{
		ID:         entity.CertificateID(key),
		Type:       entity.TypeCertificate,
		Confidence: 1.0,
		Data:       data,
	})

	// ターゲットが分かる場合は https サービス連鎖に紐付ける
	if ctx.Target != "" {
		serviceID := b.webServiceChain(httpsTarget(ctx.Target))
		b.relate(serviceID, certID, relHasResource)
	}
	return b.result()
}

// httpsTarget はスキームのないターゲットを https とみなす。
func httpsTarget(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	if strings.Contains(target, ":") {
		return "https://" + target
	}
	return "https://" + target + ":443"
}
