package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"polyjudge/internal/compiler"
	"polyjudge/internal/compiler/language"
	"polyjudge/internal/compiler/observer"
	"polyjudge/internal/compiler/service"
	"polyjudge/pkg/utils/logger"
)

const defaultConfigPath = "configs/polyjudge.yaml"

const (
	exitOK           = 0
	exitCompileError = 1
	exitFault        = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("polyjudge", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", defaultConfigPath, "Path to config file")
	list := fset.Bool("list", false, "List loaded languages and exit")
	serveMode := fset.Bool("serve", false, "Serve the language catalog, health and metrics over HTTP")
	langID := fset.String("lang", "", "Language id to compile with")
	srcPath := fset.String("src", "", "Source file to compile")
	outPath := fset.String("out", "", "Path of the compiled artifact")
	showExec := fset.Bool("show-exec", false, "Print the run command for the artifact after a successful compile")
	if err := fset.Parse(args); err != nil {
		return exitFault
	}

	path := *configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	appCfg, err := loadAppConfig(path)
	if err != nil {
		fmt.Fprintf(stderr, "load app config failed: %v\n", err)
		return exitFault
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(stderr, "init logger failed: %v\n", err)
		return exitFault
	}
	defer func() {
		_ = logger.Sync()
	}()

	var metrics observer.MetricsRecorder = observer.NoopMetricsRecorder{}
	var gatherer prometheus.Gatherer
	if appCfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := observer.NewPrometheusRecorder(reg)
		if err != nil {
			fmt.Fprintf(stderr, "init metrics failed: %v\n", err)
			return exitFault
		}
		metrics = rec
		gatherer = reg
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, report, err := language.LoadWithObserver(ctx, appCfg.Language.Dir, metrics)
	if err != nil {
		logger.Error(ctx, "load languages failed", zap.String("dir", appCfg.Language.Dir), zap.Error(err))
		fmt.Fprintf(stderr, "load languages failed: %v\n", err)
		return exitFault
	}
	switch {
	case *list:
		printLanguages(stdout, registry)
		if len(report.Skipped()) > 0 {
			fmt.Fprintln(stderr, report.String())
		}
		return exitOK
	case *serveMode:
		return serve(ctx, appCfg, registry, gatherer, stderr)
	}

	if *langID == "" || *srcPath == "" || *outPath == "" {
		fmt.Fprintln(stderr, "-lang, -src and -out are required to compile (or use -list / -serve)")
		fset.Usage()
		return exitFault
	}
	code, err := os.ReadFile(*srcPath)
	if err != nil {
		fmt.Fprintf(stderr, "read source failed: %v\n", err)
		return exitFault
	}

	invoker := compiler.NewInvokerWithObserver(compiler.Config{
		TempRoot:    appCfg.Compiler.TempRoot,
		OutputLimit: appCfg.Compiler.OutputLimit,
	}, metrics)
	svc, err := service.NewService(service.Config{
		Languages:      registry,
		Compiler:       invoker,
		PoolSize:       appCfg.Worker.PoolSize,
		Timeout:        appCfg.Worker.Timeout,
		AcquireTimeout: appCfg.Worker.AcquireTimeout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "init compile service failed: %v\n", err)
		return exitFault
	}

	res, err := svc.Compile(ctx, service.CompileRequest{
		LanguageID: *langID,
		Source:     code,
		OutputPath: *outPath,
	})
	if err != nil {
		fmt.Fprintf(stderr, "compile failed: %v\n", err)
		return exitFault
	}
	if res.Output != "" {
		fmt.Fprint(stdout, res.Output)
	}
	if res.Truncated {
		fmt.Fprintln(stderr, "compiler output was truncated")
	}
	if !res.OK() {
		return exitCompileError
	}

	if *showExec {
		lang, err := registry.Lookup(ctx, *langID)
		if err != nil {
			fmt.Fprintf(stderr, "resolve language failed: %v\n", err)
			return exitFault
		}
		argv, err := lang.ExecCommand(*outPath)
		if err != nil {
			fmt.Fprintf(stderr, "render exec command failed: %v\n", err)
			return exitFault
		}
		fmt.Fprintln(stdout, strings.Join(argv, " "))
	}
	return exitOK
}

func printLanguages(w io.Writer, registry *language.Registry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tENTRY\tCOMPILER")
	for _, d := range registry.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Version, d.EntrySource, d.CompileExec)
	}
	_ = tw.Flush()
}

func serve(ctx context.Context, cfg *AppConfig, registry *language.Registry, gatherer prometheus.Gatherer, stderr io.Writer) int {
	gin.SetMode(gin.ReleaseMode)
	httpServer := buildHTTPServer(cfg.Server, buildRouter(registry, gatherer))
	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		fmt.Fprintf(stderr, "listen failed: %v\n", err)
		return exitFault
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "polyjudge http server started", zap.String("addr", listener.Addr().String()))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
			return exitFault
		}
		return exitOK
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
		return exitFault
	}
	return exitOK
}
