package coordinator

import (
	"time"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// OutputLine はツール実行の生出力 1 行。
type OutputLine struct {
	Time    time.Time
	Content string
	IsError bool // stderr 由来
}

// RunResult は 1 回のランの最終結果。
// 結果チャネルで 1 件だけ送られる。キャンセル時は送られずにクローズされる。
type RunResult struct {
	ExecutionID string
	State       schema.RunState
	Status      schema.ExecutionStatus
	ParseStatus schema.ParseStatus
	Command     *schema.FinalCommand
	Entities    int
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ExecResult は Executor が返すプロセスレベルの結果。
type ExecResult struct {
	Output   string
	ExitCode int
	TimedOut bool
	Err      error
}
