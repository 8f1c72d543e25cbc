package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"clipstitch/internal/capture"
	"clipstitch/internal/config"
	"clipstitch/internal/ingest"
	"clipstitch/internal/output"
	"clipstitch/internal/pipeline"
	"clipstitch/internal/preview"
	"clipstitch/internal/server"
	"clipstitch/internal/simulator"
)

const version = "v1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    = flag.String("config", "", "Optional YAML config file; flags override it")
		source        = flag.String("source", "", "Capture source: system, remote, replay, simulator")
		endpoint      = flag.String("endpoint", "", "ZMQ endpoint for the remote source")
		replayPath    = flag.String("replay-path", "", "Capture log to replay")
		pollInterval  = flag.Duration("poll-interval", 0, "Clipboard poll interval")
		settleDelay   = flag.Duration("settle-delay", -1, "Pause after clearing before the second capture")
		noPreview     = flag.Bool("no-preview", false, "Skip terminal previews")
		previewWidth  = flag.Int("preview-width", 0, "Preview width in terminal columns")
		previewHeight = flag.Int("preview-height", -1, "Preview height in terminal rows (0 = keep aspect ratio)")
		restoreCursor = flag.Bool("restore-cursor", false, "Restore the cursor after each preview")
		outputDir     = flag.String("output-dir", "", "Directory for the result (default: <home>/Desktop)")
		captureLog    = flag.String("capture-log", "", "Write acquired captures to this log file")
		serve         = flag.Bool("serve", false, "Serve a live preview page")
		httpPort      = flag.Int("port", 0, "HTTP port for the live preview page")
		debug         = flag.Bool("debug", false, "Enable debug logging")
		showVersion   = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("clipstitch %s\n", version)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			return 1
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *source
		case "endpoint":
			cfg.Endpoint = *endpoint
		case "replay-path":
			cfg.ReplayPath = *replayPath
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "settle-delay":
			cfg.SettleDelay = *settleDelay
		case "no-preview":
			cfg.Preview.Enabled = !*noPreview
		case "preview-width":
			cfg.Preview.Width = *previewWidth
		case "preview-height":
			cfg.Preview.Height = *previewHeight
		case "restore-cursor":
			cfg.Preview.RestoreCursor = *restoreCursor
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "capture-log":
			cfg.CaptureLog = *captureLog
		case "serve":
			cfg.Serve = *serve
		case "port":
			cfg.Port = *httpPort
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 1
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	runID := uuid.NewString()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})).With("run_id", runID)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := pipeline.NewConsole(os.Stdout, os.Stderr)
	console.Banner(version)

	port, closePort, err := openPort(cfg)
	if err != nil {
		console.Fail(err)
		return 1
	}
	defer closePort()

	p := &pipeline.Pipeline{
		Port:         port,
		Preview:      preview.New(os.Stdout, preview.NewHalfBlock(os.Stdout), cfg.Preview),
		Saver:        output.NewPersister(cfg.OutputDir),
		Console:      console,
		RunID:        runID,
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
		Now:          time.Now,
	}

	if cfg.CaptureLog != "" {
		writer, err := output.NewRawLogWriter(cfg.CaptureLog)
		if err != nil {
			console.Fail(fmt.Errorf("start capture log: %w", err))
			return 1
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Warn("capture log close failed", "error", err)
			}
		}()
		p.Recorder = writer
		slog.Info("capture log enabled", "path", cfg.CaptureLog)
	}

	if cfg.Serve {
		feed := server.NewFeed(runID, 16)
		p.Observer = feed
		started := time.Now()
		statusFn := func() map[string]any {
			return map[string]any{
				"run_id":         runID,
				"stage":          p.Stage(),
				"source":         cfg.Source,
				"uptime_seconds": time.Since(started).Seconds(),
				"events_dropped": feed.Dropped(),
			}
		}
		go func() {
			if err := server.Run(ctx, cfg, feed.Messages(), statusFn, feed.Latest); err != nil {
				slog.Warn("preview server stopped", "error", err)
			}
		}()
		console.Info("Live preview at http://localhost:%d", cfg.Port)
	}

	if _, err := p.Run(ctx); err != nil {
		console.Fail(err)
		return 1
	}
	return 0
}

func openPort(cfg config.AppConfig) (capture.Port, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.SourceRemote:
		remote, err := ingest.Dial(cfg.Endpoint)
		if err != nil {
			return nil, noop, err
		}
		slog.Info("remote capture feed connected", "endpoint", cfg.Endpoint)
		return remote, func() { _ = remote.Close() }, nil
	case config.SourceReplay:
		replay, err := ingest.OpenReplay(cfg.ReplayPath)
		if err != nil {
			return nil, noop, fmt.Errorf("open replay: %w", err)
		}
		slog.Info("replaying capture log", "path", cfg.ReplayPath, "captures", replay.Remaining())
		return replay, noop, nil
	case config.SourceSimulator:
		return simulator.New(cfg.SimWidth, cfg.SimHeight, 5), noop, nil
	default:
		return capture.NewSystemClipboard(), noop, nil
	}
}
