package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type はエンティティの種別。ストアの entities.type 列に対応する。
type Type string

const (
	TypeHost          Type = "host"
	TypePort          Type = "port"
	TypeService       Type = "service"
	TypeVulnerability Type = "vulnerability"
	TypeWebResource   Type = "web_resource"
	TypeDNSRecord     Type = "dns_record"
	TypeCertificate   Type = "certificate"
	TypeCredential    Type = "credential"
	TypeFile          Type = "file"
)

// Data はエンティティ種別ごとの型付きペイロード。
// 種別と実装型は 1:1 で対応し、DecodeData が復元時の対応付けを持つ。
type Data interface {
	entityData()
}

// HostData は発見されたホストの属性。
type HostData struct {
	Addr     string `json:"addr"`
	Hostname string `json:"hostname,omitempty"`
	State    string `json:"state,omitempty"` // up / down
	OS       string `json:"os,omitempty"`
}

// PortData はオープンポートの属性。
type PortData struct {
	Number  int    `json:"number"`
	Proto   string `json:"proto"` // tcp / udp
	State   string `json:"state,omitempty"`
	Service string `json:"service,omitempty"`
}

// ServiceData はポート上で検出されたサービスの属性。
type ServiceData struct {
	Name    string `json:"name"`
	Product string `json:"product,omitempty"`
	Version string `json:"version,omitempty"`
	Extra   string `json:"extra,omitempty"`
	Banner  string `json:"banner,omitempty"`
}

// VulnData は検出された脆弱性の属性。
type VulnData struct {
	CVE         string  `json:"cve,omitempty"`
	Title       string  `json:"title"`
	Severity    string  `json:"severity,omitempty"` // critical/high/medium/low
	CVSS        float64 `json:"cvss,omitempty"`
	RiskScore   float64 `json:"risk_score,omitempty"`
	Description string  `json:"description,omitempty"`
}

// WebResourceData は列挙された Web リソースの属性。
type WebResourceData struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// DNSRecordData は DNS 調査で得たレコードの属性。
type DNSRecordData struct {
	Domain     string   `json:"domain"`
	RecordType string   `json:"record_type,omitempty"` // A/AAAA/MX/NS/...
	Values     []string `json:"values,omitempty"`
}

// CertificateData は TLS 証明書の属性。
type CertificateData struct {
	Fingerprint string `json:"fingerprint"`
	Subject     string `json:"subject,omitempty"`
	Issuer      string `json:"issuer,omitempty"`
	NotBefore   string `json:"not_before,omitempty"`
	NotAfter    string `json:"not_after,omitempty"`
}

// CredentialData は取得した認証情報の属性。
type CredentialData struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Service  string `json:"service,omitempty"`
}

// FileData はホスト上で発見したファイルの属性。
type FileData struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
	Kind string `json:"kind,omitempty"`
}

func (HostData) entityData()        {}
func (PortData) entityData()        {}
func (ServiceData) entityData()     {}
func (VulnData) entityData()        {}
func (WebResourceData) entityData() {}
func (DNSRecordData) entityData()   {}
func (CertificateData) entityData() {}
func (CredentialData) entityData()  {}
func (FileData) entityData()        {}

// Entity はパーサーが生成しストアへ永続化される発見物。
//
// Data は Type に対応する型付きペイロード。パーサー固有の追加情報は
// Attrs に逃がす（スキーマを持たない拡張用）。
type Entity struct {
	ID           string         `json:"id"`
	Type         Type           `json:"type"`
	ParentID     string         `json:"parent_id,omitempty"`
	Confidence   float64        `json:"confidence"`
	DiscoveredBy string         `json:"discovered_by,omitempty"`
	Data         Data           `json:"data,omitempty"`
	Attrs        map[string]any `json:"attrs,omitempty"`
	FirstSeen    time.Time      `json:"first_seen,omitzero"`
	UpdatedAt    time.Time      `json:"updated_at,omitzero"`
}

// Relationship はエンティティ間の有向リンク。
// (SourceID, TargetID, Kind) の三つ組が一意キーになる。
type Relationship struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"` // has_port / runs_service / has_vulnerability / ...
}

// EncodeData は Data を JSON バイト列にする。Data が nil の場合は "{}" を返す。
func EncodeData(d Data) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeData は種別に対応するペイロード型へ JSON を復元する。
// 未知の種別はエラーを返す。
func DecodeData(typ Type, raw []byte) (Data, error) {
	var d Data
	switch typ {
	case TypeHost:
		d = &HostData{}
	case TypePort:
		d = &PortData{}
	case TypeService:
		d = &ServiceData{}
	case TypeVulnerability:
		d = &VulnData{}
	case TypeWebResource:
		d = &WebResourceData{}
	case TypeDNSRecord:
		d = &DNSRecordData{}
	case TypeCertificate:
		d = &CertificateData{}
	case TypeCredential:
		d = &CredentialData{}
	case TypeFile:
		d = &FileData{}
	default:
		return nil, fmt.Errorf("entity: unknown type %q", typ)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("entity: decode %s data: %w", typ, err)
	}
	return deref(d), nil
}

// deref はポインタで復元したペイロードを値型に戻す。
func deref(d Data) Data {
	switch v := d.(type) {
	case *HostData:
		return *v
	case *PortData:
		return *v
	case *ServiceData:
		return *v
	case *VulnData:
		return *v
	case *WebResourceData:
		return *v
	case *DNSRecordData:
		return *v
	case *CertificateData:
		return *v
	case *CredentialData:
		return *v
	case *FileData:
		return *v
	}
	return d
}
