// Package compiler runs language toolchains inside disposable workspaces.
package compiler

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"polyjudge/internal/compiler/language"
	"polyjudge/internal/compiler/observer"
	appErr "polyjudge/pkg/errors"
	"polyjudge/pkg/utils/logger"
)

const (
	workspacePattern   = "polyjudge-compile-*"
	defaultOutputLimit = 1 << 20
	defaultWaitDelay   = 2 * time.Second
)

// Metric labels for compile attempts that did not produce a Result.
const (
	statusSpawnFailure = "SpawnFailure"
	statusCanceled     = "Canceled"
	statusBadEncoding  = "BadEncoding"
)

// Config holds invoker settings.
type Config struct {
	// TempRoot is where per-call workspaces are created; empty means os.TempDir().
	TempRoot string
	// OutputLimit caps each captured stream in bytes; 0 uses the default, <0 disables the cap.
	OutputLimit int64
	// WaitDelay bounds how long output pipes may stay open after the compiler exits.
	WaitDelay time.Duration
}

// Invoker compiles source code with the toolchain of a language descriptor.
//
// Every call gets its own workspace, so an Invoker is safe for concurrent use.
// The invoker enforces no time limit itself: callers bound a compilation by
// cancelling ctx, which kills the compiler's process group. The workspace is
// removed on every return path.
type Invoker struct {
	cfg     Config
	metrics observer.MetricsRecorder
}

// NewInvoker creates an invoker without metrics.
func NewInvoker(cfg Config) *Invoker {
	return NewInvokerWithObserver(cfg, observer.NoopMetricsRecorder{})
}

// NewInvokerWithObserver creates an invoker with metrics hooks.
func NewInvokerWithObserver(cfg Config, metrics observer.MetricsRecorder) *Invoker {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	if cfg.OutputLimit == 0 {
		cfg.OutputLimit = defaultOutputLimit
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &Invoker{cfg: cfg, metrics: metrics}
}

// Compile writes code to the descriptor's entry_source inside a fresh
// workspace and runs compile_exec with the rendered compile_args, producing
// the artifact at outfile.
//
// A compiler that runs and exits non-zero yields a Result with StatusError and
// a nil error. The returned error is reserved for faults: invalid input,
// workspace I/O, a compiler that cannot be started (CompilerUnavailable),
// cancellation (CompileCanceled or Timeout) and non UTF-8 output
// (CompileOutputEncoding).
func (inv *Invoker) Compile(ctx context.Context, lang language.Descriptor, code []byte, outfile string) (Result, error) {
	if err := lang.Validate(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(outfile) == "" {
		return Result{}, appErr.ValidationError("outfile", "required")
	}
	// The compiler runs inside the workspace, so a relative outfile would land there.
	outPath, err := filepath.Abs(outfile)
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.InvalidParams, "resolve output path failed")
	}

	workDir, err := os.MkdirTemp(inv.cfg.TempRoot, workspacePattern)
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.FileSystemError, "create compile workspace failed")
	}
	defer inv.releaseWorkspace(ctx, workDir)

	srcPath := filepath.Join(workDir, lang.EntrySource)
	if err := os.WriteFile(srcPath, code, 0644); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.FileSystemError, "write source file failed")
	}

	args, err := lang.CompileArgv(srcPath, outPath)
	if err != nil {
		return Result{}, err
	}

	languageID := lang.ID.String()
	logger.Debug(ctx, "invoking compiler",
		zap.String("language_id", languageID),
		zap.String("compiler", lang.CompileExec),
		zap.Strings("args", args),
		zap.String("outfile", outPath),
	)

	stdout := &cappedBuffer{limit: inv.cfg.OutputLimit}
	stderr := &cappedBuffer{limit: inv.cfg.OutputLimit}
	cmd := exec.CommandContext(ctx, lang.CompileExec, args...)
	cmd.Dir = workDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = inv.cfg.WaitDelay
	configureProcess(cmd)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	res, err := classify(ctx, cmd, runErr, stdout, stderr)
	if err != nil {
		inv.metrics.ObserveCompile(ctx, languageID, failureLabel(err), elapsed)
		return Result{}, err
	}
	res.Duration = elapsed
	inv.metrics.ObserveCompile(ctx, languageID, string(res.Status), elapsed)

	if res.OK() {
		if _, err := os.Stat(outPath); err != nil {
			logger.Warn(ctx, "compiler succeeded without producing an artifact",
				zap.String("language_id", languageID),
				zap.String("outfile", outPath),
			)
		}
	} else {
		logger.Debug(ctx, "compiler reported errors",
			zap.String("language_id", languageID),
			zap.Int("exit_code", res.ExitCode),
		)
	}
	return res, nil
}

func classify(ctx context.Context, cmd *exec.Cmd, runErr error, stdout, stderr *cappedBuffer) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && runErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Result{}, appErr.Wrapf(ctxErr, appErr.Timeout, "compilation timed out")
		}
		return Result{}, appErr.Wrapf(ctxErr, appErr.CompileCanceled, "compilation canceled")
	}
	if cmd.ProcessState == nil {
		logger.Error(ctx, "start compiler failed", zap.String("compiler", cmd.Path), zap.Error(runErr))
		return Result{}, appErr.Wrapf(runErr, appErr.CompilerUnavailable, "start compiler %s failed", filepath.Base(cmd.Path)).
			WithDetail("compiler", cmd.Path)
	}
	if runErr != nil && errors.Is(runErr, exec.ErrWaitDelay) {
		logger.Warn(ctx, "compiler left output pipes open after exit", zap.String("compiler", cmd.Path))
	}

	if cmd.ProcessState.Success() {
		return textResult(StatusSuccess, stdout, 0)
	}
	return textResult(StatusError, stderr, cmd.ProcessState.ExitCode())
}

func textResult(status Status, buf *cappedBuffer, exitCode int) (Result, error) {
	data := buf.Bytes()
	if !utf8.Valid(data) {
		stream := "stdout"
		if status == StatusError {
			stream = "stderr"
		}
		return Result{}, appErr.New(appErr.CompileOutputEncoding).
			WithDetail("stream", stream).
			WithDetail("exit_code", exitCode)
	}
	return Result{
		Status:    status,
		Output:    string(data),
		ExitCode:  exitCode,
		Truncated: buf.truncated,
	}, nil
}

func failureLabel(err error) string {
	switch appErr.GetCode(err) {
	case appErr.CompilerUnavailable:
		return statusSpawnFailure
	case appErr.CompileOutputEncoding:
		return statusBadEncoding
	default:
		return statusCanceled
	}
}

func (inv *Invoker) releaseWorkspace(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Error(ctx, "remove compile workspace failed", zap.String("dir", dir), zap.Error(err))
	}
}
