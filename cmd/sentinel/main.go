package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/0x6d61/sentinel/internal/command"
	"github.com/0x6d61/sentinel/internal/config"
	"github.com/0x6d61/sentinel/internal/coordinator"
	"github.com/0x6d61/sentinel/internal/parser"
	"github.com/0x6d61/sentinel/internal/policy"
	"github.com/0x6d61/sentinel/internal/registry"
	"github.com/0x6d61/sentinel/internal/resolver"
	"github.com/0x6d61/sentinel/internal/store"
	"github.com/0x6d61/sentinel/pkg/schema"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "設定ファイルのパス")
		provider   = flag.String("provider", "", "意図解決プロバイダー: anthropic, openai, rules（省略時は設定ファイル）")
		model      = flag.String("model", "", "モデル名（省略時は設定ファイルのデフォルト)")
		dbPath     = flag.String("db", "", "sqlite データベースのパス（省略時は設定ファイル）")
		intentFlag = flag.String("intent", "", "意図を直接指定して Resolver を迂回する（例: PORT_SCAN）")
		targetFlag = flag.String("target", "", "-intent 使用時のターゲット")
		paramsFlag = flag.String("params", "", "-intent 使用時のパラメーター（key=value,key=value）")
		timeoutSec = flag.Int("timeout", 0, "ツールのタイムアウト秒数を上書きする")
		yes        = flag.Bool("yes", false, "確認プロンプトをスキップして承認する")
		verbose    = flag.Bool("v", false, "デバッグログを出力する")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `🛡 Sentinel — Intent-Driven Security Assessment Assistant

Usage:
  sentinel [flags] run <instruction...>     自然言語の指示からツールを 1 回実行
  sentinel [flags] stats                    ナレッジストアの統計を表示
  sentinel [flags] prune [hours]            古いエンティティを削除（既定は設定値）
  sentinel [flags] checkpoint               データベースのバックアップを作成
  sentinel [flags] restore <backup-file>    バックアップから復元

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  ANTHROPIC_API_KEY     Anthropic API キー
  ANTHROPIC_AUTH_TOKEN  Claude Code OAuth トークン (claude auth token)
  OPENAI_API_KEY        OpenAI API キー

Examples:
  sentinel run scan ports 1-1000 on 10.0.0.5
  sentinel run 192.168.1.0/24 の生存ホストを探索して
  sentinel -provider anthropic run check example.com for vulnerabilities
  sentinel -intent PORT_SCAN -target 10.0.0.5 -params ports=1-1000 run
  sentinel stats
  sentinel prune 168
`)
	}
	flag.Parse()

	// .env があれば読み込む（なくてもエラーにしない）
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("設定エラー:", err)
	}
	if *provider != "" {
		cfg.Resolver.Provider = *provider
	}
	if *model != "" {
		cfg.Resolver.Model = *model
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		fatal("ストア初期化エラー:", err)
	}
	defer st.Close()

	mode := flag.Arg(0)
	if mode == "" {
		flag.Usage()
		os.Exit(2)
	}

	switch mode {
	case "run":
		opts := runOptions{
			Intent:     schema.IntentType(*intentFlag),
			Target:     *targetFlag,
			Params:     parseParams(*paramsFlag),
			TimeoutSec: *timeoutSec,
			Yes:        *yes,
		}
		runMode(cfg, st, logger, flag.Args()[1:], opts)
	case "stats":
		statsMode(st)
	case "prune":
		pruneMode(cfg, st, flag.Args()[1:])
	case "checkpoint":
		checkpointMode(cfg, st)
	case "restore":
		restoreMode(st, flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "不明なモード %q\n\n", mode)
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintln(os.Stderr, msg, err)
	os.Exit(1)
}

// runOptions は run モードの実行時オプション。
type runOptions struct {
	Intent     schema.IntentType // 空でなければ Resolver を迂回する
	Target     string
	Params     map[string]string
	TimeoutSec int
	Yes        bool
}

// parseParams は "key=value,key=value" 形式の文字列をマップに展開する。
func parseParams(s string) map[string]string {
	params := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			params[k] = v
		}
	}
	return params
}

// runMode は自然言語の指示（または -intent の直接指定）を 1 回のツール実行に解決して実行する。
func runMode(cfg *config.AppConfig, st *store.Store, logger *slog.Logger, args []string, opts runOptions) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var intent *schema.Intent
	if opts.Intent != "" {
		intent = &schema.Intent{
			Type:   opts.Intent,
			Target: opts.Target,
			Params: opts.Params,
			Reason: "specified via -intent flag",
		}
	} else {
		instruction := strings.TrimSpace(strings.Join(args, " "))
		if instruction == "" {
			fatal("実行エラー:", fmt.Errorf("run には指示文か -intent が必要です"))
		}

		resolverCfg, err := resolver.LoadConfig(resolver.ConfigHint{
			Provider: resolver.Provider(cfg.Resolver.Provider),
			Model:    cfg.Resolver.Model,
			BaseURL:  cfg.Resolver.BaseURL,
		})
		if err != nil {
			fatal("Resolver 設定エラー:", err)
		}
		res, err := resolver.New(resolverCfg)
		if err != nil {
			fatal("Resolver 初期化エラー:", err)
		}

		intent, err = res.Resolve(ctx, instruction)
		if err != nil {
			fatal("意図解決エラー:", err)
		}
	}
	logger.Debug("resolved intent", "intent", intent.Type, "target", intent.Target, "reason", intent.Reason)

	switch intent.Type {
	case schema.IntentUnknown:
		fmt.Println(noticeStyle.Render("指示を意図に分類できませんでした。ツールは実行しません。"))
		fmt.Println("  理由:", intent.Reason)
		return
	case schema.IntentInfoQuery:
		// 収集済みの知見への質問はストアの統計で応える
		statsMode(st)
		return
	}

	gate, err := policy.NewLocked()
	if err != nil {
		fatal("ポリシー初期化エラー:", err)
	}
	reg := registry.New()
	parsers, err := parser.NewDefaultSet()
	if err != nil {
		fatal("パーサー初期化エラー:", err)
	}
	blacklist, invalid := coordinator.NewBlacklist(append(coordinator.DefaultBlacklistPatterns, cfg.Blacklist...))
	for _, p := range invalid {
		logger.Warn("設定の拒否パターンをスキップしました", "pattern", p)
	}
	coord, err := coordinator.New(coordinator.Deps{
		Registry:  reg,
		Gate:      gate,
		Builder:   command.NewBuilder(reg.ToolNames()),
		Parsers:   parsers,
		Store:     st,
		Blacklist: blacklist,
		Logger:    logger,
	})
	if err != nil {
		fatal("初期化エラー:", err)
	}

	plan, err := coord.Plan(*intent)
	needsApproval := errors.Is(err, coordinator.ErrApprovalRequired)
	if err != nil && !needsApproval {
		fatal("計画エラー:", err)
	}
	if opts.TimeoutSec > 0 {
		plan.Spec.TimeoutSec = opts.TimeoutSec
	}

	fmt.Println(titleStyle.Render("実行計画"))
	fmt.Println("  意図:    ", string(plan.Spec.Intent))
	fmt.Println("  ターゲット:", plan.Spec.Target)
	fmt.Println("  コマンド: ", commandStyle.Render(plan.Command.Display))
	if plan.Decision.Warning != "" {
		fmt.Println(warnStyle.Render("  ⚠ " + plan.Decision.Warning))
	}

	if needsApproval {
		if !opts.Yes && !confirm(plan.Decision.Reason) {
			fmt.Println(noticeStyle.Render("キャンセルしました。"))
			return
		}
		plan.Approve()
	}

	lines, results, err := coord.Run(ctx, plan)
	if err != nil {
		fatal("実行エラー:", err)
	}
	for line := range lines {
		if line.IsError {
			fmt.Fprintln(os.Stderr, line.Content)
		} else {
			fmt.Println(line.Content)
		}
	}
	result, ok := <-results
	if !ok {
		fmt.Println(noticeStyle.Render("実行は中断されました。"))
		return
	}

	printResult(result)
	if result.State == schema.StateFailed || result.State == schema.StateTimeout {
		os.Exit(1)
	}
}

// confirm は標準入力から y/n の承認を得る。
func confirm(reason string) bool {
	fmt.Println(warnStyle.Render("この操作には承認が必要です: " + reason))
	fmt.Print("続行しますか？ [y/N]: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func printResult(r *coordinator.RunResult) {
	fmt.Println()
	fmt.Println(titleStyle.Render("実行結果"))
	fmt.Println("  実行 ID:  ", r.ExecutionID)
	fmt.Println("  状態:     ", renderState(r.State))
	fmt.Println("  所要時間: ", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String())
	if r.Entities > 0 {
		fmt.Println("  エンティティ:", r.Entities)
	}
	if r.Err != nil {
		fmt.Println(errorStyle.Render("  エラー: " + r.Err.Error()))
	}
}

func statsMode(st *store.Store) {
	stats, err := st.GetStats()
	if err != nil {
		fatal("統計取得エラー:", err)
	}

	total := 0
	types := make([]string, 0, len(stats.EntityCounts))
	for typ, n := range stats.EntityCounts {
		total += n
		types = append(types, typ)
	}
	sort.Strings(types)

	fmt.Println(titleStyle.Render("ナレッジストア統計"))
	fmt.Println("  エンティティ総数:", total)
	fmt.Println("  リレーション数: ", stats.TotalRelationships)
	fmt.Println("  実行履歴数:    ", stats.TotalExecutions)
	for _, typ := range types {
		fmt.Printf("    %-14s %d\n", typ, stats.EntityCounts[typ])
	}

	// ツールごとに成功実行（success かつ parsed）の有無を示す
	fmt.Println(titleStyle.Render("ツール実績"))
	for _, tool := range registry.New().ToolNames() {
		ok, err := st.HasSuccessfulRun(tool)
		if err != nil {
			fatal("統計取得エラー:", err)
		}
		mark := "-"
		if ok {
			mark = successStyle.Render("✓")
		}
		fmt.Printf("    %-10s %s\n", tool, mark)
	}
}

func pruneMode(cfg *config.AppConfig, st *store.Store, args []string) {
	hours := cfg.Store.PruneHours
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &hours); err != nil {
			fatal("prune 引数エラー:", err)
		}
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	n, err := st.Prune(cutoff)
	if err != nil {
		fatal("prune エラー:", err)
	}
	fmt.Printf("%d 件の古いエンティティを削除しました（%d 時間より古い）\n", n, hours)
}

func checkpointMode(cfg *config.AppConfig, st *store.Store) {
	if err := os.MkdirAll(cfg.Store.BackupDir, 0o755); err != nil {
		fatal("checkpoint エラー:", err)
	}
	dest := filepath.Join(cfg.Store.BackupDir,
		fmt.Sprintf("sentinel-%s.db", time.Now().Format("20060102-150405")))
	if err := st.Checkpoint(dest); err != nil {
		fatal("checkpoint エラー:", err)
	}
	fmt.Println("バックアップを作成しました:", dest)
}

func restoreMode(st *store.Store, args []string) {
	if len(args) == 0 {
		fatal("restore エラー:", fmt.Errorf("バックアップファイルを指定してください"))
	}
	if err := st.Restore(args[0]); err != nil {
		fatal("restore エラー:", err)
	}
	fmt.Println("バックアップから復元しました:", args[0])
}
