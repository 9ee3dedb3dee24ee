// Command marketengine runs the prediction market engine host. It loads
// configuration, validates it, wires dependencies, sets up signal handling, and
// serves until interrupted. The -dump-archive and -seal-key flags run one-off
// operator tasks instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/marketengine/internal/app"
	"github.com/alanyoungcy/marketengine/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	dumpArchive := flag.String("dump-archive", "", "print the events of an archive object key (or every object under a key/ prefix) as JSON lines and exit")
	sealKey := flag.String("seal-key", "", "encrypt wallet.seed with wallet.key_password into this file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *sealKey != "":
		pub, err := app.SealWalletKey(cfg, *sealKey)
		if err != nil {
			logger.Error("seal key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("wallet key sealed", slog.String("path", *sealKey), slog.String("public_key", pub))
		return
	case *dumpArchive != "":
		// Events go to stdout; keep logs off it.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		n, err := app.DumpArchive(ctx, cfg, *dumpArchive, os.Stdout)
		if err != nil {
			logger.Error("dump archive failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("archive dumped", slog.String("key", *dumpArchive), slog.Int("events", n))
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		application.Close()
		os.Exit(1)
	}
	logger.Info("market engine stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
