package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild whenever a local source changes"`
	Daemon  DaemonCmd  `cmd:"" help:"Rebuild on a schedule and serve metrics"`
	Show    ShowCmd    `cmd:"" help:"Print the manifest or one of its subtrees"`
	History HistoryCmd `cmd:"" help:"List recent builds"`
	Publish PublishCmd `cmd:"" help:"Upload the output tree to object storage"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(os.Stderr, c.LogFormat, parseLogLevel(c.Verbose)))
	return nil
}

// parseLogLevel honours -v first, then SITEBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("SITEBUILDER_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig loads the configuration and logs normalization warnings.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, res, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if res != nil {
		for _, w := range res.Warnings {
			logger.Warn("Configuration normalized", logfields.Path(path), slog.String("detail", w))
		}
	}
	return cfg, nil
}
