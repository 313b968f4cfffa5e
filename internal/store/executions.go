package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// Execution は 1 回のツール実行の履歴レコード。
// StageID は実行が属する評価ステージ。単発実行では空。
type Execution struct {
	ID          string
	Tool        string
	Intent      schema.IntentType
	Target      string
	Command     string
	StageID     string
	Status      schema.ExecutionStatus
	ParseStatus schema.ParseStatus
	EntityCount int
	RawOutput   string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewExecutionID は "exec_" + UUID 先頭 8 hex の実行 ID を生成する。
func NewExecutionID() string {
	return "exec_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RecordExecution は実行履歴を追記する。履歴に更新操作はない。
func (s *Store) RecordExecution(e Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO tool_executions
		(execution_id, tool, intent, target, command, stage_id, status, parse_status, entities_created, raw_output, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tool, string(e.Intent), e.Target, e.Command, nullStr(e.StageID),
		string(e.Status), string(e.ParseStatus), e.EntityCount, e.RawOutput,
		nullStr(e.Error), unixSec(e.StartedAt), unixSec(e.CompletedAt))
	if err != nil {
		return fmt.Errorf("store: record execution: %w", err)
	}
	return nil
}

const executionColumns = "execution_id, tool, intent, target, command, stage_id, status, parse_status, entities_created, raw_output, error_message, started_at, completed_at"

// Executions は実行履歴を新しい順で返す。tool が空なら全件。
func (s *Store) Executions(tool string) ([]Execution, error) {
	query := "SELECT " + executionColumns + " FROM tool_executions"
	var args []any
	if tool != "" {
		query += " WHERE tool = ?"
		args = append(args, tool)
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query executions: %w", err)
	}
	defer rows.Close()

	var execs []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *e)
	}
	return execs, rows.Err()
}

// LastExecution はツールの最新の実行履歴を返す。なければ nil。
func (s *Store) LastExecution(tool string) (*Execution, error) {
	row := s.db.QueryRow(
		"SELECT "+executionColumns+" FROM tool_executions WHERE tool = ? ORDER BY completed_at DESC LIMIT 1",
		tool)
	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// HasSuccessfulRun はツールが成功しエンティティ抽出まで完了した実行を
// 持つかを返す。部分成功（partial）は数えない。
func (s *Store) HasSuccessfulRun(tool string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM tool_executions
		WHERE tool = ? AND status = ? AND parse_status = ?
		LIMIT 1`,
		tool, string(schema.ExecSuccess), string(schema.ParseParsed)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanExecution(row rowScanner) (*Execution, error) {
	var (
		e                    Execution
		intent, status       string
		parseStatus          string
		stageID, errMsg      sql.NullString
		startedAt, completed float64
	)
	if err := row.Scan(&e.ID, &e.Tool, &intent, &e.Target, &e.Command, &stageID,
		&status, &parseStatus, &e.EntityCount, &e.RawOutput, &errMsg, &startedAt, &completed); err != nil {
		return nil, err
	}
	e.Intent = schema.IntentType(intent)
	e.StageID = stageID.String
	e.Status = schema.ExecutionStatus(status)
	e.ParseStatus = schema.ParseStatus(parseStatus)
	e.Error = errMsg.String
	e.StartedAt = fromUnixSec(startedAt)
	e.CompletedAt = fromUnixSec(completed)
	return &e, nil
}
