// Package service wraps the compiler invoker with language lookup,
// concurrency limits and per-call deadlines.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polyjudge/internal/compiler"
	"polyjudge/internal/compiler/language"
	appErr "polyjudge/pkg/errors"
	"polyjudge/pkg/utils/contextkey"
	"polyjudge/pkg/utils/logger"
)

const defaultAcquireTimeout = 2 * time.Second

// LanguageLookup resolves a language id string to its descriptor.
type LanguageLookup interface {
	Lookup(ctx context.Context, id string) (language.Descriptor, error)
}

// Compiler runs one compilation.
type Compiler interface {
	Compile(ctx context.Context, lang language.Descriptor, code []byte, outfile string) (compiler.Result, error)
}

// Config holds service dependencies and settings.
type Config struct {
	Languages LanguageLookup
	Compiler  Compiler
	// PoolSize bounds concurrent compilations; <= 0 means one.
	PoolSize int
	// Timeout bounds a single compilation; 0 disables it.
	Timeout time.Duration
	// AcquireTimeout bounds the wait for a free slot before CompileQueueFull.
	AcquireTimeout time.Duration
}

// CompileRequest describes one compilation.
type CompileRequest struct {
	LanguageID string
	Source     []byte
	OutputPath string
}

// Service handles compile requests.
type Service struct {
	languages      LanguageLookup
	compiler       Compiler
	limiter        *TokenLimiter
	timeout        time.Duration
	acquireTimeout time.Duration
}

// NewService creates a new compile service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Languages == nil {
		return nil, fmt.Errorf("language lookup is required")
	}
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	return &Service{
		languages:      cfg.Languages,
		compiler:       cfg.Compiler,
		limiter:        NewTokenLimiter(cfg.PoolSize),
		timeout:        cfg.Timeout,
		acquireTimeout: acquireTimeout,
	}, nil
}

// Compile resolves the language and compiles the request's source.
// A compiler error is reported in the Result, not as an error.
func (s *Service) Compile(ctx context.Context, req CompileRequest) (compiler.Result, error) {
	ctx = withCompileID(ctx)

	lang, err := s.languages.Lookup(ctx, req.LanguageID)
	if err != nil {
		logger.Warn(ctx, "language lookup failed", zap.String("language_id", req.LanguageID), zap.Error(err))
		return compiler.Result{}, err
	}

	if err := s.acquireSlot(ctx); err != nil {
		return compiler.Result{}, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.compiler.Compile(ctx, lang, req.Source, req.OutputPath)
	if err != nil {
		logger.Error(ctx, "compile failed",
			zap.String("language", lang.Label()),
			zap.Int("code", int(appErr.GetCode(err))),
			zap.Error(err),
		)
		return compiler.Result{}, err
	}
	logger.Info(ctx, "compile finished",
		zap.String("language", lang.Label()),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Capacity reports the configured pool size.
func (s *Service) Capacity() int {
	return s.limiter.Capacity()
}

func (s *Service) acquireSlot(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	err := s.limiter.Acquire(waitCtx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return appErr.Wrapf(ctxErr, appErr.Timeout, "wait for compile slot timed out")
		}
		return appErr.Wrapf(ctxErr, appErr.CompileCanceled, "wait for compile slot canceled")
	}
	logger.Warn(ctx, "compile pool is full", zap.Int("pool_size", s.limiter.Capacity()), zap.Duration("wait", s.acquireTimeout))
	return appErr.New(appErr.CompileQueueFull).WithMessage("compile pool is full")
}

func withCompileID(ctx context.Context) context.Context {
	if id, ok := ctx.Value(contextkey.CompileID).(string); ok && id != "" {
		return ctx
	}
	return context.WithValue(ctx, contextkey.CompileID, uuid.NewString())
}

// CompileIDFromContext returns the compile id attached by Compile, if any.
func CompileIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextkey.CompileID).(string)
	return id
}
