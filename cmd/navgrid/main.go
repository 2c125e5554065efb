package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/udisondev/gridpath/internal/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// app carries state shared by all subcommands.
type app struct {
	cfg config.NavGrid
	out io.Writer
}

func newApp(out io.Writer) *cli.Command {
	a := &app{out: out}

	return &cli.Command{
		Name:   "navgrid",
		Usage:  "multi-floor grid navigation: path queries, move ranges, level import and serving",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config (env " + config.EnvConfigPath + ")",
				Value: config.Path(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log_level from the config (debug, info, warn, error)",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.pathCommand(),
			a.reachCommand(),
			a.inspectCommand(),
			a.importCommand(),
			a.serveCommand(),
		},
	}
}

// setup loads the config and configures logging before any subcommand runs.
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.LoadNavGrid(cmd.String("config"))
	if err != nil {
		return ctx, fmt.Errorf("loading config: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	return ctx, nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
