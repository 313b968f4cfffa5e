package schema

// ExecutionStatus はツール実行のプロセスレベルの結果。
type ExecutionStatus string

const (
	// ExecSuccess はプロセスが成功し、パーサーがエンティティを抽出できた。
	ExecSuccess ExecutionStatus = "success"

	// ExecFailed はプロセス自体が失敗した（非ゼロ終了・起動失敗・タイムアウト）。
	ExecFailed ExecutionStatus = "failed"

	// ExecPartial はプロセスは成功したがパースでデータを得られなかった。
	ExecPartial ExecutionStatus = "partial"
)

// ParseStatus は出力パースの結果区分。
type ParseStatus string

const (
	ParseParsed      ParseStatus = "parsed"
	ParseFailed      ParseStatus = "parse_failed"
	ParseEmptyOutput ParseStatus = "empty_output"
)

// RunState はコーディネーターのラン状態。
// IDLE → RUNNING → {SUCCESS, FAILED, TIMEOUT, CANCELLED} の順にのみ遷移する。
type RunState string

const (
	StateIdle      RunState = "IDLE"
	StateRunning   RunState = "RUNNING"
	StateSuccess   RunState = "SUCCESS"
	StateFailed    RunState = "FAILED"
	StateTimeout   RunState = "TIMEOUT"
	StateCancelled RunState = "CANCELLED"
)
