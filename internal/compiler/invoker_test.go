package compiler_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"polyjudge/internal/compiler"
	"polyjudge/internal/compiler/language"
	appErr "polyjudge/pkg/errors"
	"polyjudge/pkg/utils/logger"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

// copyLanguage "compiles" by copying the entry file to the output path.
func copyLanguage() language.Descriptor {
	return language.Descriptor{
		ID:          uuid.MustParse("1d7e0c52-4b8f-4a51-9d0e-3c2b1a0f9e87"),
		Name:        "Copy",
		Version:     "1",
		ExecCmd:     "cat {file}",
		CompileExec: "cp",
		CompileArgs: "{infile} {outfile}",
		EntrySource: "main.txt",
	}
}

// shellLanguage treats the source as a build script run by sh with the
// output path as $1.
func shellLanguage() language.Descriptor {
	return language.Descriptor{
		ID:          uuid.MustParse("9a4c2e71-0f3b-4d6a-8e5c-7b1d2f3a4c5e"),
		Name:        "Shell build",
		Version:     "1",
		ExecCmd:     "{file}",
		CompileExec: "sh",
		CompileArgs: "{infile} {outfile}",
		EntrySource: "build.sh",
	}
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read temp root: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("workspace left behind: %v", names)
	}
}

func TestCompileSuccessProducesArtifact(t *testing.T) {
	requireTool(t, "cp")
	tempRoot := t.TempDir()
	outfile := filepath.Join(t.TempDir(), "prog")
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	res, err := inv.Compile(context.Background(), copyLanguage(), []byte("hello artifact"), outfile)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.OK() || res.Status != compiler.StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	data, err := os.ReadFile(outfile)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if string(data) != "hello artifact" {
		t.Fatalf("unexpected artifact content: %q", data)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileSuccessCarriesStdout(t *testing.T) {
	requireTool(t, "sh")
	tempRoot := t.TempDir()
	outfile := filepath.Join(t.TempDir(), "prog")
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	script := "echo 'warning: unused variable x'\nprintf built > \"$1\"\n"
	res, err := inv.Compile(context.Background(), shellLanguage(), []byte(script), outfile)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Output, "warning: unused variable x") {
		t.Fatalf("expected stdout diagnostics, got %q", res.Output)
	}
	if _, err := os.Stat(outfile); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileErrorReturnsStderr(t *testing.T) {
	requireTool(t, "sh")
	tempRoot := t.TempDir()
	outfile := filepath.Join(t.TempDir(), "prog")
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	script := "echo 'this goes to stdout'\necho 'main.c:1:1: error: expected declaration' >&2\nexit 3\n"
	res, err := inv.Compile(context.Background(), shellLanguage(), []byte(script), outfile)
	if err != nil {
		t.Fatalf("compiler errors must not be returned as faults: %v", err)
	}
	if res.Status != compiler.StatusError {
		t.Fatalf("expected error status, got %+v", res)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "expected declaration") || strings.Contains(res.Output, "stdout") {
		t.Fatalf("expected only stderr text, got %q", res.Output)
	}
	if _, err := os.Stat(outfile); !os.IsNotExist(err) {
		t.Fatalf("no artifact expected, stat err = %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileSpawnFailureIsTypedError(t *testing.T) {
	tempRoot := t.TempDir()
	lang := copyLanguage()
	lang.CompileExec = "polyjudge-no-such-compiler"
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	_, err := inv.Compile(context.Background(), lang, []byte("x"), filepath.Join(t.TempDir(), "prog"))
	if err == nil {
		t.Fatalf("expected spawn failure")
	}
	if !appErr.Is(err, appErr.CompilerUnavailable) {
		t.Fatalf("expected CompilerUnavailable, got %v", err)
	}
	if appErr.PublicMessage(err) != appErr.CompilerUnavailable.Message() {
		t.Fatalf("unexpected public message: %q", appErr.PublicMessage(err))
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileInvalidUTF8Output(t *testing.T) {
	requireTool(t, "sh")
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	script := "printf '\\377\\376' >&2\nexit 1\n"
	_, err := inv.Compile(context.Background(), shellLanguage(), []byte(script), filepath.Join(t.TempDir(), "prog"))
	if !appErr.Is(err, appErr.CompileOutputEncoding) {
		t.Fatalf("expected CompileOutputEncoding, got %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileCancellationKillsCompilerAndCleansUp(t *testing.T) {
	requireTool(t, "sh")
	requireTool(t, "sleep")
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot, WaitDelay: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := inv.Compile(ctx, shellLanguage(), []byte("sleep 30\n"), filepath.Join(t.TempDir(), "prog"))
	if !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("compile was not interrupted, took %s", elapsed)
	}
	assertNoWorkspaces(t, tempRoot)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = inv.Compile(canceled, shellLanguage(), []byte("exit 0\n"), filepath.Join(t.TempDir(), "prog"))
	if !appErr.Is(err, appErr.CompileCanceled) {
		t.Fatalf("expected CompileCanceled, got %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileConcurrentRequestsAreIsolated(t *testing.T) {
	requireTool(t, "cp")
	tempRoot := t.TempDir()
	outDir := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})
	lang := copyLanguage()

	const workers = 16
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			code := []byte(fmt.Sprintf("submission %d", i))
			outfile := filepath.Join(outDir, fmt.Sprintf("prog-%d", i))
			res, err := inv.Compile(context.Background(), lang, code, outfile)
			if err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("compile %d failed: %s", i, res.Output)
			}
			data, err := os.ReadFile(outfile)
			if err != nil {
				return err
			}
			if !bytes.Equal(data, code) {
				return fmt.Errorf("artifact %d has content %q", i, data)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent compile: %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompilePathsWithWhitespace(t *testing.T) {
	requireTool(t, "cp")
	tempRoot := filepath.Join(t.TempDir(), "temp root")
	if err := os.Mkdir(tempRoot, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "build output")
	if err := os.Mkdir(outDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outfile := filepath.Join(outDir, "my prog")
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	res, err := inv.Compile(context.Background(), copyLanguage(), []byte("spaced"), outfile)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if _, err := os.Stat(outfile); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileRelativeOutfileIsResolvedAgainstCaller(t *testing.T) {
	requireTool(t, "cp")
	callerDir := t.TempDir()
	chdir(t, callerDir)
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	res, err := inv.Compile(context.Background(), copyLanguage(), []byte("rel"), "prog")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(callerDir, "prog")); err != nil {
		t.Fatalf("artifact should be relative to the caller: %v", err)
	}
}

func TestCompileOutputIsCapped(t *testing.T) {
	requireTool(t, "sh")
	requireTool(t, "head")
	requireTool(t, "tr")
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot, OutputLimit: 100})

	script := "head -c 10000 /dev/zero | tr '\\0' x >&2\nexit 1\n"
	res, err := inv.Compile(context.Background(), shellLanguage(), []byte(script), filepath.Join(t.TempDir(), "prog"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Output) != 100 || !res.Truncated {
		t.Fatalf("expected 100 truncated bytes, got %d (truncated=%v)", len(res.Output), res.Truncated)
	}
}

func TestCompileRejectsInvalidInput(t *testing.T) {
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	if _, err := inv.Compile(context.Background(), copyLanguage(), []byte("x"), ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed for empty outfile, got %v", err)
	}
	escaping := copyLanguage()
	escaping.EntrySource = "../main.txt"
	if _, err := inv.Compile(context.Background(), escaping, []byte("x"), filepath.Join(t.TempDir(), "o")); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed for entry outside workspace, got %v", err)
	}
	badTemplate := copyLanguage()
	badTemplate.CompileArgs = "{src} {outfile}"
	if _, err := inv.Compile(context.Background(), badTemplate, []byte("x"), filepath.Join(t.TempDir(), "o")); !appErr.Is(err, appErr.TemplateInvalid) {
		t.Fatalf("expected TemplateInvalid, got %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

func TestCompileLogsResolvedOutfile(t *testing.T) {
	requireTool(t, "cp")
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.SetLogger(logger.NewWithCore(core))
	defer logger.SetLogger(prev)

	outfile := filepath.Join(t.TempDir(), "prog")
	inv := compiler.NewInvoker(compiler.Config{TempRoot: t.TempDir()})
	if _, err := inv.Compile(context.Background(), copyLanguage(), []byte("x"), outfile); err != nil {
		t.Fatalf("compile: %v", err)
	}

	entries := logs.FilterMessage("invoking compiler").All()
	if len(entries) != 1 {
		t.Fatalf("expected one debug record, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["outfile"]; got != outfile {
		t.Fatalf("logged outfile = %v, want %s", got, outfile)
	}
}

// TestCompileRealC exercises a real toolchain when one is installed.
func TestCompileRealC(t *testing.T) {
	requireTool(t, "cc")
	lang := language.Descriptor{
		ID:          uuid.MustParse("6f1c1f8e-2a53-4c1e-9a0b-6c1d8a7c2f10"),
		Name:        "C",
		Version:     "c11",
		ExecCmd:     "{file}",
		CompileExec: "cc",
		CompileArgs: "-std=c11 -O2 -o {outfile} {infile}",
		EntrySource: "main.c",
	}
	tempRoot := t.TempDir()
	inv := compiler.NewInvoker(compiler.Config{TempRoot: tempRoot})

	good := filepath.Join(t.TempDir(), "good")
	res, err := inv.Compile(context.Background(), lang, []byte("int main(void) { return 0; }\n"), good)
	if err != nil {
		t.Fatalf("compile valid source: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %q", res.Output)
	}
	if _, err := os.Stat(good); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad")
	res, err = inv.Compile(context.Background(), lang, []byte("int main(void) { return 0 }\n"), bad)
	if err != nil {
		t.Fatalf("compile invalid source: %v", err)
	}
	if res.OK() || strings.TrimSpace(res.Output) == "" {
		t.Fatalf("expected diagnostics, got %+v", res)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatalf("no artifact expected for invalid source, stat err = %v", err)
	}
	assertNoWorkspaces(t, tempRoot)
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
