package parser

import (
	"errors"
	"testing"

	"github.com/0x6d61/sentinel/internal/entity"
)

// TestDNSLookupParser は nslookup 出力からのレコード抽出をテストする。
// 先頭の Server/Address ブロックは問い合わせ先なので値に含めないこと。
func TestDNSLookupParser(t *testing.T) {
	output := `Server:		8.8.8.8
Address:	8.8.8.8#53

Non-authoritative answer:
Name:	example.com
Address: 93.184.216.34`

	res, err := (&DNSLookupParser{}).Parse(Context{Target: "example.com", Tool: "nslookup"}, output)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	rec := findEntity(t, res, "dns_example_com")
	data := rec.Data.(entity.DNSRecordData)
	if data.Domain != "example.com" {
		t.Errorf("Domain = %q", data.Domain)
	}
	if len(data.Values) != 1 || data.Values[0] != "93.184.216.34" {
		t.Errorf("Values = %v, want [93.184.216.34]", data.Values)
	}

	host := findEntity(t, res, "host_93_184_216_34")
	if hd := host.Data.(entity.HostData); hd.Hostname != "example.com" {
		t.Errorf("host data = %+v", hd)
	}

	if len(res.Relationships) != 1 || res.Relationships[0].Kind != "resolves_to" {
		t.Errorf("relationships = %v", res.Relationships)
	}
}

// TestDNSLookupParser_NoData は解決失敗の出力が ErrNoData になることをテストする。
func TestDNSLookupParser_NoData(t *testing.T) {
	output := "Server:\t8.8.8.8\nAddress:\t8.8.8.8#53\n\n** server can't find nosuch.example: NXDOMAIN"
	_, err := (&DNSLookupParser{}).Parse(Context{}, output)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

// TestSubdomainEnumParser は両方の行形式をテストする。
func TestSubdomainEnumParser(t *testing.T) {
	output := `www.example.com 93.184.216.34
Found: mail.example.com -> 93.184.216.40`

	res, err := (&SubdomainEnumParser{}).Parse(Context{Target: "example.com"}, output)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	findEntity(t, res, "dns_www_example_com")
	findEntity(t, res, "dns_mail_example_com")
	findEntity(t, res, "host_93_184_216_40")
}

// TestSSLScanParser は openssl s_client 出力からの証明書抽出をテストする。
func TestSSLScanParser(t *testing.T) {
	output := `CONNECTED(00000003)
subject=CN = example.com
issuer=C = US, O = DigiCert Inc
SHA256 Fingerprint=AB:CD:EF:12:34:56
    notBefore=Jan  1 00:00:00 2024 GMT
    notAfter=Jan  1 00:00:00 2025 GMT`

	res, err := (&SSLScanParser{}).Parse(Context{Target: "example.com:443", Tool: "openssl"}, output)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cert := findEntity(t, res, "cert_ab_cd_ef_12_34_56")
	data := cert.Data.(entity.CertificateData)
	if data.Subject != "CN = example.com" {
		t.Errorf("Subject = %q", data.Subject)
	}
	if data.Issuer == "" || data.NotAfter == "" {
		t.Errorf("certificate data incomplete: %+v", data)
	}

	// https サービス連鎖に紐付くこと
	findEntity(t, res, "host_example_com_port_443_tcp_service_https")
}

// TestSSLScanParser_NoData は接続失敗出力が ErrNoData になることをテストする。
func TestSSLScanParser_NoData(t *testing.T) {
	_, err := (&SSLScanParser{}).Parse(Context{}, "connect: Connection refused\n")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}
