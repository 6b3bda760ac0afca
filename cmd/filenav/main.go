// filenav serves a read-only HTML listing of a directory tree.
//
// Usage:
//
//	filenav [options]
//
// Options are read from an optional YAML or JSON file (--config), then the
// FILENAV_ROOT environment variable, then flags. Run with --help for the list.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"filenav/internal/config"
	"filenav/internal/logging"
	"filenav/internal/server"
)

// Version is set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(serve).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "filenav: %v\n", err)
		return 1
	}

	return 0
}

func newApp(action func(context.Context, config.Config) error) *cli.Command {
	return &cli.Command{
		Name:    "filenav",
		Usage:   "browse a directory tree over HTTP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "base directory to serve",
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "listen address",
			},
			&cli.StringFlag{
				Name:  "metrics-listen",
				Usage: "Prometheus listen address, empty disables",
			},
			&cli.BoolFlag{
				Name:  "show-hidden",
				Usage: "list entries whose name starts with a dot",
			},
			&cli.StringSliceFlag{
				Name:  "ext",
				Usage: "only list files with this extension (repeatable)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "json or console",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to this file with rotation instead of stderr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			return action(ctx, cfg)
		},
	}
}

// buildConfig layers flags over the file and environment, then validates.
func buildConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if cmd.IsSet("root") {
		cfg.Root = cmd.String("root")
	}
	if cmd.IsSet("listen") {
		cfg.Listen = cmd.String("listen")
	}
	if cmd.IsSet("metrics-listen") {
		cfg.MetricsListen = cmd.String("metrics-listen")
	}
	if cmd.IsSet("show-hidden") {
		cfg.ShowHidden = cmd.Bool("show-hidden")
	}
	if cmd.IsSet("ext") {
		cfg.AllowedExtensions = cmd.StringSlice("ext")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}

	return cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	logger.Info("serving directory",
		zap.String("root", cfg.Root),
		zap.Bool("show_hidden", cfg.ShowHidden),
		zap.Strings("allowed_extensions", cfg.AllowedExtensions),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Listen)
	})

	if cfg.MetricsListen != "" {
		g.Go(func() error {
			return server.RunMetrics(ctx, cfg.MetricsListen, logger)
		})
	}

	return g.Wait()
}
