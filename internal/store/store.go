// Package store implements the SQLite-backed entity store.
//
// エンティティ・リレーション・実行履歴の 3 テーブルを持つ。
// エンティティのバッチ upsert は単一トランザクションで all-or-nothing。
// 実行履歴は追記専用で、更新・削除の操作は存在しない。
package store

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store は SQLite バックエンドのエンティティストア。
// mu は書き込みとチェックポイント（接続の閉じ直し）を直列化する。
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open はデータベースを開き、スキーマを初期化して Store を返す。
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: dbPath, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return db, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entities (
			id            TEXT PRIMARY KEY,
			type          TEXT NOT NULL,
			parent_id     TEXT,
			confidence    REAL DEFAULT 1.0,
			discovered_by TEXT,
			data          JSON NOT NULL,
			attrs         JSON,
			first_seen    REAL NOT NULL,
			updated_at    REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entity_type    ON entities(type);
		CREATE INDEX IF NOT EXISTS idx_entity_parent  ON entities(parent_id);
		CREATE INDEX IF NOT EXISTS idx_entity_updated ON entities(updated_at);

		CREATE TABLE IF NOT EXISTS entity_relationships (
			source_id  TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at REAL NOT NULL,
			PRIMARY KEY (source_id, target_id, kind),
			FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
			FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_rel_source ON entity_relationships(source_id, kind);
		CREATE INDEX IF NOT EXISTS idx_rel_target ON entity_relationships(target_id, kind);

		CREATE TABLE IF NOT EXISTS tool_executions (
			execution_id     TEXT PRIMARY KEY,
			tool             TEXT NOT NULL,
			intent           TEXT,
			target           TEXT,
			command          TEXT,
			stage_id         TEXT,
			status           TEXT NOT NULL,
			parse_status     TEXT NOT NULL,
			entities_created INTEGER DEFAULT 0,
			raw_output       TEXT NOT NULL DEFAULT '',
			error_message    TEXT,
			started_at       REAL NOT NULL,
			completed_at     REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_exec_tool    ON tool_executions(tool);
		CREATE INDEX IF NOT EXISTS idx_exec_status  ON tool_executions(status);
		CREATE INDEX IF NOT EXISTS idx_exec_started ON tool_executions(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Prune は updated_at が指定時刻より古いエンティティを削除して件数を返す。
// リレーションは外部キーの CASCADE で一緒に消える。
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM entities WHERE updated_at < ?", unixSec(olderThan))
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned stale entities", "count", n, "cutoff", olderThan)
	}
	return n, nil
}

// Checkpoint は接続を閉じてデータベースファイルをコピーし、再接続する。
// 閉じることで WAL の内容を本体ファイルへ確実に反映させる。
func (s *Store) Checkpoint(checkpointPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: checkpoint close: %w", err)
	}
	if err := copyFile(s.path, checkpointPath); err != nil {
		return fmt.Errorf("store: checkpoint copy: %w", err)
	}
	return s.reopen()
}

// Restore はチェックポイントファイルで現在のデータベースを置き換える。
func (s *Store) Restore(checkpointPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: restore close: %w", err)
	}
	if err := copyFile(checkpointPath, s.path); err != nil {
		return fmt.Errorf("store: restore copy: %w", err)
	}
	// 置き換え前の WAL/SHM が残っていると古い内容が混ざる
	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")
	return s.reopen()
}

func (s *Store) reopen() error {
	db, err := open(s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Stats はエンティティ種別ごとの件数とリレーション・実行履歴の総数を返す。
type Stats struct {
	EntityCounts       map[string]int
	TotalRelationships int
	TotalExecutions    int
}

// GetStats はデータベースの統計を返す。
func (s *Store) GetStats() (*Stats, error) {
	rows, err := s.db.Query("SELECT type, COUNT(*) FROM entities GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{EntityCounts: make(map[string]int)}
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		stats.EntityCounts[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM entity_relationships").Scan(&stats.TotalRelationships); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tool_executions").Scan(&stats.TotalExecutions); err != nil {
		return nil, err
	}
	return stats, nil
}

// unixSec は time.Time を REAL 列用の unix 秒（小数付き）へ変換する。
func unixSec(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSec(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
