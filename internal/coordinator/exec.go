package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// Executor は検証済みコマンドを非同期に実行する。
// テストでは偽物に差し替えられる。
type Executor interface {
	Execute(ctx context.Context, cmd *schema.FinalCommand, timeoutSec int) (<-chan OutputLine, <-chan *ExecResult)
}

// resolveBinary は binary 名を PATH から絶対パスに解決する。
//
// セキュリティ:
//   - パス区切り文字（/ \）を含む名前は拒否（パストラバーサル防止）
//   - exec.LookPath で PATH 内の実在バイナリのみ許可
//   - 絶対パスであることを確認
func resolveBinary(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("binary name must not contain path separators: %q", name)
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("binary name must not be empty")
	}
	absPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", name, err)
	}
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("resolved path is not absolute: %q", absPath)
	}
	return absPath, nil
}

// CommandExecutor は外部プロセスとしてツールを実行する Executor。
type CommandExecutor struct{}

// Execute はコマンドを起動し、出力ストリームと完了通知のチャネルを返す。
// タイムアウトは context.WithTimeout で強制される。
func (e *CommandExecutor) Execute(ctx context.Context, cmd *schema.FinalCommand, timeoutSec int) (<-chan OutputLine, <-chan *ExecResult) {
	linesCh := make(chan OutputLine, 256)
	resultCh := make(chan *ExecResult, 1)

	go func() {
		defer close(linesCh)
		defer close(resultCh)

		if timeoutSec <= 0 {
			timeoutSec = 300
		}
		ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()

		absPath, err := resolveBinary(cmd.Tool)
		if err != nil {
			resultCh <- &ExecResult{Err: fmt.Errorf("binary not found: %w", err)}
			return
		}

		proc := exec.CommandContext(ctx, absPath, cmd.Args...) // nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command -- absPath は LookPath で検証済み、Args はビルダー検証済み
		stdout, _ := proc.StdoutPipe()
		stderr, _ := proc.StderrPipe()

		var raw []string
		collect := func(sc *bufio.Scanner, isErr bool) {
			for sc.Scan() {
				line := OutputLine{Time: time.Now(), Content: sc.Text(), IsError: isErr}
				if !isErr {
					raw = append(raw, line.Content)
				}
				select {
				case linesCh <- line:
				case <-ctx.Done():
					return
				}
			}
		}

		exitCode := 0
		var runErr error

		if err := proc.Start(); err != nil {
			runErr = err
		} else {
			done := make(chan struct{}, 2)
			go func() { collect(bufio.NewScanner(stdout), false); done <- struct{}{} }()
			go func() { collect(bufio.NewScanner(stderr), true); done <- struct{}{} }()
			<-done
			<-done
			if err := proc.Wait(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					exitCode = exitErr.ExitCode()
				} else {
					runErr = err
				}
			}
		}

		resultCh <- &ExecResult{
			Output:   strings.Join(raw, "\n"),
			ExitCode: exitCode,
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      runErr,
		}
	}()

	return linesCh, resultCh
}
