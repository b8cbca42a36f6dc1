package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/doc-capture/internal/capture"
	"github.com/zombor/doc-capture/internal/extraction"
	"github.com/zombor/doc-capture/internal/history"
	"github.com/zombor/doc-capture/internal/logger"
	"github.com/zombor/doc-capture/internal/web"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("doc-capture")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port for the capture UI")
		endpoint     = fs.StringLong("endpoint", "http://localhost:8000", "Extraction service base URL (POST /api/extract)")
		timeout      = fs.DurationLong("timeout", 60*time.Second, "Extraction request timeout")
		historyDB    = fs.StringLong("history-db", "doc-capture.db", "Outcome history database path (empty disables history)")
		historyLimit = fs.IntLong("history-limit", web.DefaultHistoryLimit, "Outcomes returned by /api/history by default")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat    = fs.StringLong("log-format", "text", "Log format: text or json")
		file         = fs.StringLong("file", "", "Extract a single file, print the fields and exit")
		_            = fs.StringLong("config", "", "Config file (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DOC_CAPTURE"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger.Init(&logger.Config{Level: *logLevel, Format: *logFormat})

	client := extraction.NewClient(*endpoint, extraction.WithTimeout(*timeout))

	if *file != "" {
		controller := capture.NewController(client, capture.DataURLEncoder{}, nil)
		defer controller.Close()
		if err := runOnce(controller, *file, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			controller.Close()
			os.Exit(1)
		}
		return
	}

	var store *history.BoltStore
	var recorder capture.Recorder
	var lister web.HistoryLister
	if *historyDB != "" {
		slog.Info("Initializing history database...", "path", *historyDB)
		var err error
		store, err = history.NewBoltStore(*historyDB)
		if err != nil {
			slog.Error("Failed to initialize history database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder, lister = store, store
	}

	controller := capture.NewController(client, capture.DataURLEncoder{}, recorder)
	defer controller.Close()

	server := web.NewServer(controller, lister)
	server.SetHistoryLimit(*historyLimit)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "endpoint", *endpoint)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}
