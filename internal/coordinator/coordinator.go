// Package coordinator drives the tool execution pipeline.
//
// 1 ランの流れ:
//
//	Intent → レジストリ（ToolSpec） → ポリシーゲート → コマンドビルダー
//	       → ブラックリスト → 非同期実行 → パース → 永続化 → 履歴記録
//
// 実行前の拒否（ツールなし・ポリシー遮断・検証エラー）は Plan がエラーを返し、
// 履歴には残らない。実行が始まったランは結果にかかわらず履歴に 1 行だけ残る。
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0x6d61/sentinel/internal/command"
	"github.com/0x6d61/sentinel/internal/parser"
	"github.com/0x6d61/sentinel/internal/policy"
	"github.com/0x6d61/sentinel/internal/registry"
	"github.com/0x6d61/sentinel/internal/store"
	"github.com/0x6d61/sentinel/pkg/schema"
)

// ErrBlocked はポリシーゲートが実行を遮断したことを示す。覆せない。
var ErrBlocked = errors.New("coordinator: execution blocked by policy")

// ErrApprovalRequired はポリシーゲートが拒否したが、明示的なオペレーター承認で
// 覆せることを示す。Plan はこのエラーとともに計画を返し、呼び出し元が
// Approve を経てから Run できる。
var ErrApprovalRequired = errors.New("coordinator: execution requires explicit operator approval")

// ErrBlacklisted は最終コマンドが拒否リストに一致したことを示す。
var ErrBlacklisted = errors.New("coordinator: command matches blacklist")

// Deps は Coordinator の依存一式。すべて注入で、グローバル状態は持たない。
type Deps struct {
	Registry  *registry.Registry
	Gate      *policy.Gate
	Builder   *command.Builder
	Parsers   *parser.Set
	Store     *store.Store
	Executor  Executor
	Blacklist *Blacklist
	Logger    *slog.Logger
}

// Coordinator はツール実行パイプラインの調停役。
type Coordinator struct {
	deps Deps
}

// New は Coordinator を構築する。必須依存が欠けていればエラー。
func New(deps Deps) (*Coordinator, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("coordinator: registry is required")
	case deps.Gate == nil:
		return nil, errors.New("coordinator: policy gate is required")
	case deps.Builder == nil:
		return nil, errors.New("coordinator: command builder is required")
	case deps.Parsers == nil:
		return nil, errors.New("coordinator: parser set is required")
	case deps.Store == nil:
		return nil, errors.New("coordinator: store is required")
	}
	if deps.Executor == nil {
		deps.Executor = &CommandExecutor{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Blacklist == nil {
		bl, invalid := NewBlacklist(DefaultBlacklistPatterns)
		for _, p := range invalid {
			deps.Logger.Warn("skipping invalid blacklist pattern", "pattern", p)
		}
		deps.Blacklist = bl
	}

	// パーサーの抜けは起動時に一度だけ報告する
	if missing := deps.Parsers.MissingFor(deps.Registry.Intents()); len(missing) > 0 {
		deps.Logger.Warn("intents without parsers; their runs will record parse_failed",
			"intents", missing)
	}

	return &Coordinator{deps: deps}, nil
}

// Plan は実行前パイプライン（仕様組み立て→ポリシー→コマンド検証）の結果。
type Plan struct {
	Intent   schema.Intent
	Spec     *schema.ToolSpec
	Decision schema.Decision
	Command  *schema.FinalCommand

	approved bool
}

// Approve はポリシーが要承認として拒否した計画に、オペレーターの明示的承認を記録する。
// 承認なしの Run は拒否される。
func (p *Plan) Approve() { p.approved = true }

// Plan は Intent から実行計画を組み立てる。
//
// ポリシーが遮断した場合は ErrBlocked を返し、計画は作らない。
// 承認で覆せる拒否の場合は組み立て済みの計画と ErrApprovalRequired を
// 両方返す。呼び出し元は計画を提示してオペレーターの承認を得てから
// Approve → Run する。
func (c *Coordinator) Plan(intent schema.Intent) (*Plan, error) {
	spec, err := c.deps.Registry.BuildToolSpec(intent)
	if err != nil {
		return nil, err
	}

	decision := c.deps.Gate.Evaluate(spec)
	if !decision.Allowed && !decision.RequiresConfirmation {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, decision.Reason)
	}

	cmd, err := c.deps.Builder.Build(spec)
	if err != nil {
		return nil, err
	}

	if pattern, hit := c.deps.Blacklist.Screen(cmd.Display); hit {
		c.deps.Logger.Warn("command blocked by blacklist", "pattern", pattern, "command", cmd.Display)
		return nil, fmt.Errorf("%w: %q", ErrBlacklisted, cmd.Display)
	}

	plan := &Plan{Intent: intent, Spec: spec, Decision: decision, Command: cmd}
	if !decision.Allowed {
		return plan, fmt.Errorf("%w: %s", ErrApprovalRequired, decision.Reason)
	}
	return plan, nil
}

// Run は計画を非同期に実行する。
//
// ポリシーが要承認として拒否した計画は、Approve を経ていなければ
// ErrApprovalRequired で実行前に拒否する（履歴には残らない）。
//
// 戻り値のチャネルは実行の生出力ストリームと完了通知。結果チャネルには
// 最終結果が 1 件だけ流れる。呼び出し元の ctx がキャンセルされた場合は
// プロセスを殺し、完了通知を送らずにチャネルを閉じる（履歴には残る）。
func (c *Coordinator) Run(ctx context.Context, plan *Plan) (<-chan OutputLine, <-chan *RunResult, error) {
	if !plan.Decision.Allowed && !plan.approved {
		return nil, nil, fmt.Errorf("%w: %s", ErrApprovalRequired, plan.Decision.Reason)
	}

	linesCh := make(chan OutputLine, 256)
	resultCh := make(chan *RunResult, 1)

	go func() {
		defer close(linesCh)
		defer close(resultCh)

		state := newRunState()
		execID := store.NewExecutionID()
		startedAt := time.Now()

		logger := c.deps.Logger.With("execution_id", execID, "tool", plan.Spec.ToolName)
		logger.Info("starting run", "command", plan.Command.Display)
		state.advance(schema.StateRunning)

		execLines, execResult := c.deps.Executor.Execute(ctx, plan.Command, plan.Spec.TimeoutSec)
		for line := range execLines {
			select {
			case linesCh <- line:
			case <-ctx.Done():
			}
		}
		res := <-execResult

		record := store.Execution{
			ID:        execID,
			Tool:      plan.Spec.ToolName,
			Intent:    plan.Spec.Intent,
			Target:    plan.Spec.Target,
			Command:   plan.Command.Display,
			StartedAt: startedAt,
		}

		// 呼び出し元キャンセル: 完了通知を抑止し、履歴だけ残す
		if ctx.Err() != nil && !res.TimedOut {
			state.advance(schema.StateCancelled)
			record.Status = schema.ExecFailed
			record.ParseStatus = schema.ParseEmptyOutput
			record.RawOutput = res.Output
			record.Error = "cancelled"
			record.CompletedAt = time.Now()
			c.record(logger, record)
			logger.Info("run cancelled")
			return
		}

		result := c.finish(logger, state, plan, res, &record)
		result.ExecutionID = execID
		result.Command = plan.Command
		result.StartedAt = startedAt
		result.FinishedAt = record.CompletedAt
		resultCh <- result
	}()

	return linesCh, resultCh, nil
}

// finish はプロセス結果を判定し、パース・永続化・履歴記録まで行う。
func (c *Coordinator) finish(logger *slog.Logger, state *runState, plan *Plan, res *ExecResult, record *store.Execution) *RunResult {
	record.RawOutput = res.Output
	defer func() {
		record.CompletedAt = time.Now()
		c.record(logger, *record)
	}()

	// プロセス失敗: failed / empty_output
	if res.Err != nil || res.ExitCode != 0 || res.TimedOut {
		if res.TimedOut {
			state.advance(schema.StateTimeout)
		} else {
			state.advance(schema.StateFailed)
		}
		record.Status = schema.ExecFailed
		record.ParseStatus = schema.ParseEmptyOutput
		err := res.Err
		if err == nil {
			err = fmt.Errorf("exit code %d", res.ExitCode)
		}
		if res.TimedOut {
			err = fmt.Errorf("timed out after %ds", plan.Spec.TimeoutSec)
		}
		record.Error = err.Error()
		logger.Warn("run failed", "error", err, "exit_code", res.ExitCode)
		return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus, Err: err}
	}

	// プロセス成功・出力なし: partial / empty_output
	// 空出力の区分はパーサーではなくここで決める
	if strings.TrimSpace(res.Output) == "" {
		state.advance(schema.StateSuccess)
		record.Status = schema.ExecPartial
		record.ParseStatus = schema.ParseEmptyOutput
		logger.Info("run completed with empty output")
		return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus}
	}

	// プロセス成功: パースを試みる
	p, ok := c.deps.Parsers.ForIntent(plan.Spec.Intent)
	if !ok {
		state.advance(schema.StateSuccess)
		record.Status = schema.ExecPartial
		record.ParseStatus = schema.ParseFailed
		record.Error = "no parser registered"
		logger.Info("run completed without parser")
		return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus}
	}

	parsed, err := p.Parse(parser.Context{
		Target: plan.Spec.Target,
		Tool:   plan.Spec.ToolName,
		ExecID: record.ID,
	}, res.Output)
	if err != nil {
		// データなし・パース失敗: partial / parse_failed
		state.advance(schema.StateSuccess)
		record.Status = schema.ExecPartial
		record.ParseStatus = schema.ParseFailed
		record.Error = err.Error()
		logger.Info("run completed but parse found no data", "error", err)
		return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus}
	}

	// 永続化
	n, err := c.deps.Store.UpsertEntities(parsed.Entities)
	if err == nil {
		err = c.deps.Store.AddRelationships(parsed.Relationships)
	}
	if err != nil {
		state.advance(schema.StateFailed)
		record.Status = schema.ExecFailed
		record.ParseStatus = schema.ParseParsed
		record.Error = err.Error()
		logger.Error("persist failed", "error", err)
		return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus, Err: err}
	}

	state.advance(schema.StateSuccess)
	record.Status = schema.ExecSuccess
	record.ParseStatus = schema.ParseParsed
	record.EntityCount = n
	logger.Info("run succeeded", "entities", n)
	return &RunResult{State: state.get(), Status: record.Status, ParseStatus: record.ParseStatus, Entities: n}
}

// record は履歴を書き込む。履歴の書き込み失敗はランの結果を変えない。
func (c *Coordinator) record(logger *slog.Logger, e store.Execution) {
	if err := c.deps.Store.RecordExecution(e); err != nil {
		logger.Error("failed to record execution history", "error", err)
	}
}
