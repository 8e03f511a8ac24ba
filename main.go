package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slighter12/quip-mcp-go/config"
	"github.com/slighter12/quip-mcp-go/delegate"
	"github.com/slighter12/quip-mcp-go/logger"
	"github.com/slighter12/quip-mcp-go/mcp"
	"github.com/slighter12/quip-mcp-go/tools"
	"github.com/slighter12/quip-mcp-go/transport/http"
	"github.com/slighter12/quip-mcp-go/transport/shared"
	"github.com/slighter12/quip-mcp-go/transport/stdio"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	configPath, err := config.ResolveConfigPath()
	if err != nil {
		log.Fatalf("Failed to resolve config path: %+v", err)
	}
	if err := config.EnsureDefaultConfig(configPath); err != nil {
		log.Fatalf("Failed to create default configuration: %+v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %+v", err)
	}

	// Initialize logger
	if err := logger.Init(logLevel(cfg), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		log.Fatalf("Failed to initialize logger: %+v", err)
	}
	logger.Info("Configuration loaded", "path", configPath, "name", cfg.Name, "version", cfg.Version)

	if err := run(cfg, configPath); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	script := delegate.NewScript(cfg.Delegate)
	if err := script.Check(); err != nil {
		logger.Warn("Document script is not ready; tool calls will fail until it is", "error", err)
	}

	dispatcher := tools.NewDispatcher(tools.NewCatalog(cfg.Tools.NamePrefix), script, tools.WithTempDir(cfg.Delegate.TempDir))
	handler := shared.NewHandler(mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, dispatcher)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watchConfig(ctx, configPath)
		return nil
	})

	if cfg.TransportEnabled(config.TransportStreamableHTTP) {
		server := http.NewServer(cfg, handler)
		g.Go(func() error {
			return server.Start(ctx)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if cfg.TransportEnabled(config.TransportStdio) {
		server := stdio.NewStdioServer(handler, os.Stdin, os.Stdout)
		g.Go(func() error {
			logger.Info("Starting MCP server in stdio mode")
			if err := server.Serve(ctx); err != nil {
				return err
			}
			// Client closed stdin; stop the other transports too.
			stop()
			return nil
		})
	}

	return g.Wait()
}

// watchConfig applies log level changes without a restart. Other settings
// take effect on the next start.
func watchConfig(ctx context.Context, path string) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.Warn("Config hot reload disabled", "path", path, "error", err)
		return
	}
	if err := watcher.Run(ctx, func(cfg *config.Config) {
		level := logLevel(cfg)
		logger.SetLevel(level)
		logger.Info("Applied reloaded log level", "level", level.String())
	}); err != nil {
		logger.Warn("Config watcher stopped", "error", err)
	}
}

// logLevel resolves the configured level; server.debug forces debug.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Server.Debug {
		return slog.LevelDebug
	}
	return logger.GetLevelFromString(cfg.Logging.Level)
}
