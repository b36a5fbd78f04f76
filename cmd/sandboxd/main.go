// Command sandboxd runs the sandbox execution daemon: an HTTP server that
// binds each (user_id, session_id) to a hardened Docker container and
// executes shell commands inside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandboxlabs/sandboxd/internal/api"
	"github.com/sandboxlabs/sandboxd/internal/config"
	"github.com/sandboxlabs/sandboxd/internal/containerdriver"
	"github.com/sandboxlabs/sandboxd/internal/executor"
	"github.com/sandboxlabs/sandboxd/internal/kvdir"
	"github.com/sandboxlabs/sandboxd/internal/reaper"
	"github.com/sandboxlabs/sandboxd/internal/registry"
	"github.com/sandboxlabs/sandboxd/internal/workspace"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sandboxd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to sandboxd.yaml")
	logLevelStr := fs.String("log-level", "", "log level: debug, info, warn, error (default from SANDBOXD_LOG or info)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevelStr, os.Getenv("SANDBOXD_LOG")),
	}))

	path := *cfgPath
	if path == "" {
		for _, p := range []string{"sandboxd.yaml", "/etc/sandboxd/sandboxd.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	logger.Debug("config loaded", "config_path", path, "listen", cfg.Listen, "default_image", cfg.DefaultImage)

	if cfg.APIKey == "" && cfg.JWTSecret == "" {
		logger.Warn("no api_key or jwt_secret configured — running in open access mode (dev only; do not use in production)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := kvdir.NewRedisDirectory(ctx, kvdir.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("connect to session directory", "error", err)
		return 1
	}
	defer kv.Close()
	logger.Debug("session directory connected", "addr", cfg.Redis.Addr)

	driver, err := containerdriver.New()
	if err != nil {
		logger.Error("connect to container engine", "error", err)
		return 1
	}
	defer driver.Close()

	if err := driver.Ping(ctx); err != nil {
		logger.Error("container engine ping failed", "error", err)
		return 1
	}
	logger.Info("container engine ready")

	reg := registry.New(cfg, kv, driver)
	exec := executor.New(cfg, reg, driver)
	ws := workspace.NewGateway(driver, cfg.Workspace.MaxFileSizeBytes)

	reapInterval := time.Duration(cfg.CleanupIntervalSeconds) * time.Second
	reapMaxAge := time.Duration(cfg.CleanupMaxContainerAgeSeconds) * time.Second
	rpr := reaper.New(kv, driver, reg, reapInterval, reapMaxAge, logger)
	go rpr.Run(ctx)

	srv := api.NewServer(cfg, reg, exec, ws, logger)

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Listen)
	fmt.Fprintf(os.Stderr, "\n  sandboxd ready\n  API: http://%s\n\n", cfg.Listen)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", "error", err)
		return 1
	}
	return 0
}

func parseLogLevel(flagVal, envVal string) slog.Level {
	v := flagVal
	if v == "" {
		v = envVal
	}
	switch v {
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
