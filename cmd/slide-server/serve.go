package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ironsheep/slide-server/internal/cache"
	"github.com/ironsheep/slide-server/internal/config"
	"github.com/ironsheep/slide-server/internal/logging"
	"github.com/ironsheep/slide-server/internal/server"
	"github.com/ironsheep/slide-server/internal/slide"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP image server",
		Long: `Start an HTTP server serving the images found below the root directory.

Examples:
  # Serve ./slides on the default address
  slide-server serve --root ./slides

  # Listen on every interface with a larger response cache
  slide-server serve --listen 0.0.0.0:8080 --cache-size-mb 512`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	f := cmd.Flags()
	f.String("listen", "localhost:5000", "address to listen on")
	f.String("root", ".", "directory images are served from")
	f.Int("output-size-limit", 0, "largest output side served without the UNSAFE safety mode")
	f.String("default-safe-mode", "", "safety mode of requests without X-Image-Size-Safety")
	f.Int("cache-size-mb", 0, "response cache size in megabytes, 0 disables the cache")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-file", "", "also log to this file, rotated")

	bindFlags(v, cmd, map[string]string{
		"listen":            "listen",
		"root":              "root",
		"output-size-limit": "output_size_limit",
		"default-safe-mode": "default_safe_mode",
		"cache-size-mb":     "cache.size_mb",
		"log-level":         "log.level",
		"log-file":          "log.file",
	})
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		MaxSize: cfg.Log.MaxSizeMB,
		MaxAge:  cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("starting slide server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	lib, err := slide.NewLibrary(cfg.Root, cfg.TileSize, cfg.OpenImages, log.Named("library"))
	if err != nil {
		return err
	}

	// A nil cache renders every request.
	c := cache.New(cfg.CacheBytes(), cfg.CacheTTL(), log.Named("cache"))

	srv := server.New(lib, c, server.Options{
		OutputSizeLimit: cfg.OutputSizeLimit,
		DefaultSafeMode: cfg.SafeMode(),
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		RequestTimeout:  cfg.RequestTimeout(),
		Version:         Version,
	}, log.Named("http"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Listen, cfg.ShutdownTimeout())
}
