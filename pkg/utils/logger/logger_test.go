package logger_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"polyjudge/pkg/utils/contextkey"
	"polyjudge/pkg/utils/logger"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"error", false},
		{"trace", false},
		{"TRACE", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := logger.NewLogger(logger.Config{Level: tt.level, OutputPath: logger.OutputNone})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger(%q) err = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyjudge.log")
	l, err := logger.NewLogger(logger.Config{Level: "debug", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	prev := logger.SetLogger(l)
	defer logger.SetLogger(prev)

	logger.Info(context.Background(), "registry loaded", zap.Int("loaded", 2))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"registry loaded"`) {
		t.Fatalf("unexpected log output: %s", data)
	}
}

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.SetLogger(logger.NewWithCore(core))
	defer logger.SetLogger(prev)

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = context.WithValue(ctx, contextkey.CompileID, "compile-7")
	logger.Debug(ctx, "invoking compiler")

	entries := logs.FilterMessage("invoking compiler").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" {
		t.Fatalf("expected trace_id field, got %v", fields)
	}
	if fields["compile_id"] != "compile-7" {
		t.Fatalf("expected compile_id field, got %v", fields)
	}
}

func TestHelpersWithoutLoggerAreNoop(t *testing.T) {
	prev := logger.SetLogger(nil)
	defer logger.SetLogger(prev)

	logger.Info(context.Background(), "dropped")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync without logger: %v", err)
	}
}
