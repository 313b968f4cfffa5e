package parser

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/0x6d61/sentinel/internal/entity"
)

// リレーション種別。(source, target, kind) がストアの一意キーになる。
const (
	relHasPort     = "has_port"
	relRunsService = "runs_service"
	relHasVuln     = "has_vulnerability"
	relHasResource = "has_resource"
	relResolvesTo  = "resolves_to"
)

// builder は 1 回のパース中にエンティティとリレーションを蓄積する。
// 同じ ID のエンティティは最初の 1 件だけ保持する。
type builder struct {
	ctx      Context
	entities []entity.Entity
	rels     []entity.Relationship
	seen     map[string]bool
}

func newBuilder(ctx Context) *builder {
	return &builder{ctx: ctx, seen: make(map[string]bool)}
}

func (b *builder) add(e entity.Entity) string {
	if b.seen[e.ID] {
		return e.ID
	}
	b.seen[e.ID] = true
	if e.DiscoveredBy == "" {
		e.DiscoveredBy = b.ctx.Tool
	}
	b.entities = append(b.entities, e)
	return e.ID
}

func (b *builder) relate(source, target, kind string) {
	b.rels = append(b.rels, entity.Relationship{SourceID: source, TargetID: target, Kind: kind})
}

// host はホストエンティティを追加して ID を返す。
// 既出のホストに対しては空フィールドだけを新しい値で埋める。
func (b *builder) host(addr string, confidence float64, data entity.HostData) string {
	if data.Addr == "" {
		data.Addr = addr
	}
	if data.State == "" {
		data.State = "up"
	}
	id := entity.HostID(addr)

	if b.seen[id] {
		for i := range b.entities {
			if b.entities[i].ID != id {
				continue
			}
			prev, _ := b.entities[i].Data.(entity.HostData)
			if prev.OS == "" {
				prev.OS = data.OS
			}
			if prev.Hostname == "" {
				prev.Hostname = data.Hostname
			}
			b.entities[i].Data = prev
		}
		return id
	}

	return b.add(entity.Entity{
		ID:         id,
		Type:       entity.TypeHost,
		Confidence: confidence,
		Data:       data,
	})
}

// port はポートエンティティを追加し、ホストとのリレーションも張る。
func (b *builder) port(hostID string, number int, proto string, data entity.PortData) string {
	data.Number = number
	data.Proto = proto
	id := entity.PortID(hostID, number, proto)
	b.add(entity.Entity{
		ID:         id,
		Type:       entity.TypePort,
		ParentID:   hostID,
		Confidence: 1.0,
		Data:       data,
	})
	b.relate(hostID, id, relHasPort)
	return id
}

// service はサービスエンティティを追加し、ポートとのリレーションも張る。
func (b *builder) service(portID, name string, data entity.ServiceData) string {
	if data.Name == "" {
		data.Name = name
	}
	id := entity.ServiceID(portID, name)
	b.add(entity.Entity{
		ID:         id,
		Type:       entity.TypeService,
		ParentID:   portID,
		Confidence: 0.9,
		Data:       data,
	})
	b.relate(portID, id, relRunsService)
	return id
}

// vuln は脆弱性エンティティを追加し、サービスとのリレーションも張る。
func (b *builder) vuln(serviceID, name string, data entity.VulnData) string {
	if data.Title == "" {
		data.Title = name
	}
	id := entity.VulnerabilityID(serviceID, name)
	b.add(entity.Entity{
		ID:         id,
		Type:       entity.TypeVulnerability,
		ParentID:   serviceID,
		Confidence: 0.8,
		Data:       data,
	})
	b.relate(serviceID, id, relHasVuln)
	return id
}

// webResource は Web リソースエンティティを追加する。
func (b *builder) webResource(serviceID, rawURL string, data entity.WebResourceData) string {
	if data.URL == "" {
		data.URL = rawURL
	}
	id := entity.WebResourceID(serviceID, rawURL)
	b.add(entity.Entity{
		ID:         id,
		Type:       entity.TypeWebResource,
		ParentID:   serviceID,
		Confidence: 0.9,
		Data:       data,
	})
	b.relate(serviceID, id, relHasResource)
	return id
}

// result は蓄積したエンティティを Result にまとめる。空なら ErrNoData。
func (b *builder) result() (*Result, error) {
	if len(b.entities) == 0 {
		return nil, ErrNoData
	}
	return &Result{Entities: b.entities, Relationships: b.rels}, nil
}

// webServiceChain はターゲット URL（またはホスト名）から
// ホスト→ポート→サービスのエンティティ連鎖を組み立て、サービス ID を返す。
// gobuster / nikto のようにツール出力自体にホスト情報が乏しいパーサーで使う。
func (b *builder) webServiceChain(target string) string {
	host, port, scheme := splitWebTarget(target)
	hostID := b.host(host, 0.9, entity.HostData{})
	portID := b.port(hostID, port, "tcp", entity.PortData{State: "open", Service: scheme})
	return b.service(portID, scheme, entity.ServiceData{})
}

// splitWebTarget は URL またはホスト名からホスト・ポート・スキームを割り出す。
func splitWebTarget(target string) (host string, port int, scheme string) {
	scheme = "http"
	port = 80

	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			if u.Scheme == "https" {
				scheme = "https"
				port = 443
			}
			host = u.Hostname()
			if p := u.Port(); p != "" {
				if n, err := strconv.Atoi(p); err == nil {
					port = n
				}
			}
			return host, port, scheme
		}
	}

	host = target
	if h, p, ok := strings.Cut(target, ":"); ok {
		if n, err := strconv.Atoi(p); err == nil {
			host = h
			port = n
			if n == 443 {
				scheme = "https"
			}
		}
	}
	return host, port, scheme
}
