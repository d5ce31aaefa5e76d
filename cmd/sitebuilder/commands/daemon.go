package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/daemon"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Schedule string `help:"Cron expression overriding daemon.schedule"`
	Listen   string `help:"Metrics listen address; enables the HTTP endpoint"`
	Watch    bool   `help:"Also rebuild when a local source changes"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	logger := g.logger()
	cfg, err := loadConfig(root.Config, logger)
	if err != nil {
		return err
	}
	if d.Schedule != "" {
		cfg.Daemon.Schedule = d.Schedule
	}
	if d.Listen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = d.Listen
	}

	opts := daemon.Options{
		Schedule:     cfg.Daemon.Schedule,
		InitialBuild: true,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsAddr = cfg.Metrics.Listen
	}
	if d.Watch {
		opts.WatchRoots, opts.WatchIgnore = watchPaths(cfg)
		opts.Debounce = cfg.Watch.DebounceDuration()
	}
	logger.Info("Starting daemon",
		logfields.Schedule(opts.Schedule),
		slog.String("metrics", opts.MetricsAddr),
		slog.Int("watch_roots", len(opts.WatchRoots)))
	return runDaemon(cfg, logger, opts, true)
}

// runDaemon wires a runtime into a daemon and blocks until SIGINT or SIGTERM.
func runDaemon(cfg *config.Config, logger *slog.Logger, opts daemon.Options, publish bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{publish: publish})
	if err != nil {
		return err
	}
	defer rt.Close()

	opts.Registry = rt.registry
	opts.Build = func(ctx context.Context) (*build.Result, error) {
		return rt.run(ctx, false)
	}
	d, err := daemon.New(opts)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

// watchPaths returns the local source roots and the directories the build
// itself writes to.
func watchPaths(cfg *config.Config) (roots, ignore []string) {
	for _, s := range cfg.Sources {
		if s.Git == nil {
			roots = append(roots, s.Path)
		}
	}
	return roots, []string{cfg.Output.Directory, cfg.Workspace}
}
