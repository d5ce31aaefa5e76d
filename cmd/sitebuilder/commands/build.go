package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output  string `short:"o" help:"Output directory (overrides output.directory)"`
	Full    bool   `help:"Ignore the previous manifest and rebuild everything"`
	Publish bool   `help:"Upload the output to the configured S3 bucket after a successful build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	logger := g.logger()
	cfg, err := loadConfig(root.Config, logger)
	if err != nil {
		return err
	}
	if err := applyOutputOverride(cfg, b.Output); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{publish: b.Publish})
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.run(ctx, b.Full)
	if res != nil {
		printSummary(g, res)
	}
	return err
}

// applyOutputOverride moves the output (and the manifest with it) to dir.
func applyOutputOverride(cfg *config.Config, dir string) error {
	if dir == "" {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.ConfigError("resolve output directory").WithContext("path", dir).WithCause(err).Build()
	}
	cfg.Output.Directory = abs
	return nil
}

func printSummary(g *Global, res *build.Result) {
	w := g.out()
	_, _ = fmt.Fprintf(w, "Build %s %s in %s\n", res.ID, res.Status, res.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  transformed=%d reused=%d copied=%d (%s) pruned=%d skipped=%d\n",
		res.Stats.FilesTransformed, res.Stats.FilesReused, res.Stats.FilesCopied,
		bytefmt.ByteSize(uint64(res.Stats.BytesCopied)), res.Stats.DirsPruned, res.Stats.Skipped)
	if res.Full {
		_, _ = fmt.Fprintf(w, "  full rebuild: %s\n", res.FullReason)
	}
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(w, "  skipped %s (%s): %s\n", filepath.ToSlash(filepath.Join(s.Path, s.Name)), s.Parser, s.Error)
	}
	if res.Published != nil {
		_, _ = fmt.Fprintf(w, "  published=%d unchanged=%d (%s)\n",
			res.Published.Uploaded, res.Published.Unchanged, bytefmt.ByteSize(uint64(res.Published.Bytes)))
	}
	if res.ManifestPath != "" && res.Manifest != nil {
		_, _ = fmt.Fprintf(w, "  manifest %s\n", res.ManifestPath)
	}
}
