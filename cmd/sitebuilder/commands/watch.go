package commands

import (
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/daemon"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before a rebuild (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	logger := g.logger()
	cfg, err := loadConfig(root.Config, logger)
	if err != nil {
		return err
	}

	roots, ignore := watchPaths(cfg)
	if len(roots) == 0 {
		return errors.ConfigError("watch needs at least one local source").WithContext("field", "sources").Build()
	}
	if len(roots) < len(cfg.Sources) {
		logger.Warn("Git sources are only fetched on startup in watch mode")
	}

	debounce := cfg.Watch.DebounceDuration()
	if w.Debounce > 0 {
		debounce = w.Debounce
	}
	logger.Info("Watching sources", logfields.Count(len(roots)), logfields.DurationMS(float64(debounce.Milliseconds())))
	return runDaemon(cfg, logger, daemon.Options{
		WatchRoots:   roots,
		WatchIgnore:  ignore,
		Debounce:     debounce,
		InitialBuild: true,
		Logger:       logger,
	}, false)
}
