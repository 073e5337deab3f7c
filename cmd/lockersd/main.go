package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"corebtc/config"
	"corebtc/core"
	"corebtc/observability/logging"
	telemetry "corebtc/observability/otel"
	"corebtc/services/auditd/server"
	"corebtc/services/auditd/store"
	"corebtc/services/replay"
	"corebtc/storage"
)

const envOverride = "LOCKERS_ENV"

type options struct {
	configPath string
	replayPath string
	strict     bool
	replayOnly bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "./config.toml", "Path to the configuration file")
	flag.StringVar(&opts.replayPath, "replay", "", "Path to a JSON-lines operation log applied before serving")
	flag.BoolVar(&opts.strict, "strict", false, "Stop the replay at the first failed operation")
	flag.BoolVar(&opts.replayOnly, "replay-only", false, "Exit after genesis and replay instead of serving the audit API")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if env := strings.TrimSpace(os.Getenv(envOverride)); env != "" {
		cfg.Log.Env = env
	}

	logger := logging.SetupWithOptions("lockersd", logging.Options{
		Env:        cfg.Log.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("lockersd stopped", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "lockersd",
		Environment: cfg.Log.Env,
		Network:     cfg.BitcoinNetwork,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	audit, err := store.Open(cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer audit.Close()
	hub := store.NewHub(cfg.Audit.StreamBuffer)

	db, err := openDatabase(cfg.Storage)
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, cfg, core.Options{
		Emitter: store.NewSink(audit, hub, logger),
		Logger:  logger,
	})
	if err != nil {
		db.Close()
		return err
	}
	defer node.Close()

	applied, err := node.EnsureGenesis(cfg)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	logger.Info("registry ready",
		slog.Bool("genesis", applied),
		slog.String("network", node.Network().Name),
		slog.String("storage", cfg.Storage.Backend))

	if opts.replayPath != "" {
		if err := replayFile(ctx, node, opts.replayPath, opts.strict, logger); err != nil {
			return err
		}
	}
	if opts.replayOnly {
		return nil
	}

	srv, err := server.New(server.Config{
		ListenAddress:      cfg.Audit.ListenAddress,
		RateLimitPerSecond: cfg.Audit.RateLimitPerSecond,
		RateLimitBurst:     cfg.Audit.RateLimitBurst,
		Network:            node.Network(),
	}, server.Deps{
		Registry: node.Lockers(),
		Catalog:  node.Catalog(),
		Lock:     node.Locker(),
		Store:    audit,
		Hub:      hub,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func openDatabase(cfg config.Storage) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "", "leveldb":
		db, err := storage.NewLevelDB(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb at %s: %w", cfg.Path, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func replayFile(ctx context.Context, node *core.Node, path string, strict bool, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()
	if _, err := replay.Run(ctx, node, f, replay.Options{Strict: strict, Logger: logger}); err != nil {
		return err
	}
	return nil
}
