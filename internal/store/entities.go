package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/0x6d61/sentinel/internal/entity"
)

// ErrNotFound は ID に対応するエンティティが存在しないことを示す。
var ErrNotFound = errors.New("store: entity not found")

const upsertSQL = `
	INSERT INTO entities (id, type, parent_id, confidence, discovered_by, data, attrs, first_seen, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		type          = excluded.type,
		parent_id     = excluded.parent_id,
		confidence    = excluded.confidence,
		discovered_by = excluded.discovered_by,
		data          = excluded.data,
		attrs         = excluded.attrs,
		updated_at    = excluded.updated_at`

// UpsertEntities はバッチを単一トランザクションで upsert する。
//
// 1 件でも失敗すればロールバックされ、部分的な書き込みは残らない。
// 既存 ID はペイロードと updated_at が置き換わり、first_seen は保持される。
func (s *Store) UpsertEntities(batch []entity.Entity) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := unixSec(time.Now())
	for _, e := range batch {
		data, err := entity.EncodeData(e.Data)
		if err != nil {
			return 0, fmt.Errorf("store: encode %s: %w", e.ID, err)
		}
		var attrs []byte
		if len(e.Attrs) > 0 {
			attrs, err = json.Marshal(e.Attrs)
			if err != nil {
				return 0, fmt.Errorf("store: encode attrs %s: %w", e.ID, err)
			}
		}

		ts := now
		if !e.UpdatedAt.IsZero() {
			ts = unixSec(e.UpdatedAt)
		}
		if _, err := stmt.Exec(e.ID, string(e.Type), nullStr(e.ParentID), e.Confidence,
			nullStr(e.DiscoveredBy), string(data), nullBytes(attrs), ts, ts); err != nil {
			return 0, fmt.Errorf("store: upsert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return len(batch), nil
}

// AddRelationship はリレーションを追加する。既存の三つ組は黙って無視される。
func (s *Store) AddRelationship(rel entity.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRelationship(rel)
}

// AddRelationships は複数リレーションをまとめて追加する。
func (s *Store) AddRelationships(rels []entity.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range rels {
		if err := s.addRelationship(rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addRelationship(rel entity.Relationship) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO entity_relationships (source_id, target_id, kind, created_at)
		VALUES (?, ?, ?, ?)`,
		rel.SourceID, rel.TargetID, rel.Kind, unixSec(time.Now()))
	if err != nil {
		return fmt.Errorf("store: add relationship: %w", err)
	}
	return nil
}

const entityColumns = "id, type, parent_id, confidence, discovered_by, data, attrs, first_seen, updated_at"

// GetEntity は ID でエンティティを取得する。見つからなければ ErrNotFound。
func (s *Store) GetEntity(id string) (*entity.Entity, error) {
	row := s.db.QueryRow("SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// EntitiesByType は種別でエンティティを取得する。
func (s *Store) EntitiesByType(typ entity.Type) ([]entity.Entity, error) {
	return s.queryEntities("SELECT "+entityColumns+" FROM entities WHERE type = ? ORDER BY id", string(typ))
}

// Children は親エンティティにリレーションで繋がる子を取得する。
func (s *Store) Children(parentID, kind string) ([]entity.Entity, error) {
	return s.queryEntities(`
		SELECT e.id, e.type, e.parent_id, e.confidence, e.discovered_by, e.data, e.attrs, e.first_seen, e.updated_at
		FROM entities e
		JOIN entity_relationships r ON r.target_id = e.id
		WHERE r.source_id = ? AND r.kind = ?
		ORDER BY e.id`, parentID, kind)
}

func (s *Store) queryEntities(query string, args ...any) ([]entity.Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query entities: %w", err)
	}
	defer rows.Close()

	var entities []entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entity.Entity, error) {
	var (
		e                     entity.Entity
		typ, data             string
		parentID, discoverer  sql.NullString
		attrs                 sql.NullString
		firstSeen, updatedAt  float64
	)
	if err := row.Scan(&e.ID, &typ, &parentID, &e.Confidence, &discoverer, &data, &attrs, &firstSeen, &updatedAt); err != nil {
		return nil, err
	}

	e.Type = entity.Type(typ)
	e.ParentID = parentID.String
	e.DiscoveredBy = discoverer.String
	e.FirstSeen = fromUnixSec(firstSeen)
	e.UpdatedAt = fromUnixSec(updatedAt)

	decoded, err := entity.DecodeData(e.Type, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", e.ID, err)
	}
	e.Data = decoded

	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &e.Attrs); err != nil {
			return nil, fmt.Errorf("store: decode attrs %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
