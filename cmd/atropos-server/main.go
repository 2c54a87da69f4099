// Package main implements the atropos-server CLI: a rollout-coordination
// server for RLAIF training (spec.md §1). It registers a trainer's run
// parameters, accepts environment registrations and scored trajectory
// groups, and serves fixed-size batches on demand.
//
// Usage:
//
//	atropos-server [options] [serve] Start the coordinator HTTP server
//	atropos-server version           Show version information
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/atropos-server/internal/apperrors"
	"github.com/kraklabs/atropos-server/internal/config"
	"github.com/kraklabs/atropos-server/internal/coordinator"
	"github.com/kraklabs/atropos-server/internal/httpapi"
	"github.com/kraklabs/atropos-server/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the CLI flags that apply regardless of subcommand.
type GlobalFlags struct {
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to atropos.yaml (default: none, use env/flags)")
		port        = flag.IntP("port", "p", 0, "HTTP port (default: $ATROPOS_PORT or 8000)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (default: $ATROPOS_LOG_LEVEL or info)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for debug)")
	)
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `atropos-server - rollout-coordination server for RLAIF training

Usage:
  atropos-server [options] [serve]
  atropos-server version

Options (must come before the subcommand):
  -p, --port int        HTTP port (default: $ATROPOS_PORT or 8000)
  -c, --config string    Path to atropos.yaml
      --log-level string Log level: debug, info, warn, error
      --no-color         Disable color output
  -v, --verbose          Increase verbosity
  -V, --version          Show version and exit

Environment Variables:
  ATROPOS_PORT       HTTP port (default 8000)
  ATROPOS_LOG_LEVEL  Log verbosity (default info)
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("atropos-server version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{NoColor: *noColor, Verbose: *verbose}
	ui.InitColors(globals.NoColor)

	cfg, err := config.Load(*configPath)
	if err != nil {
		apperrors.FatalError(err, false)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		runServe(cfg, globals)
	case "version":
		fmt.Printf("atropos-server version %s (commit %s, built %s)\n", version, commit, date)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func logLevelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServe(cfg *config.Config, globals GlobalFlags) {
	level := logLevelFromString(cfg.LogLevel)
	if globals.Verbose >= 1 {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	coord := coordinator.New(reg)
	handler := httpapi.New(coord, logger, reg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down atropos-server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	ui.Header("atropos-server")
	fmt.Printf("%s %s\n", ui.Label("Listening on:"), ui.DimText(server.Addr))
	logger.Info("atropos-server starting", "port", cfg.Port, "log_level", cfg.LogLevel)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		apperrors.FatalError(fmt.Errorf("server error: %w", err), false)
	}
}
