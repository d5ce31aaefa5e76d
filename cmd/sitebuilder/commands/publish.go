package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/bytefmt"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Output string `short:"o" help:"Output directory to upload (overrides output.directory)"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	logger := g.logger()
	cfg, err := loadConfig(root.Config, logger)
	if err != nil {
		return err
	}
	if err := applyOutputOverride(cfg, p.Output); err != nil {
		return err
	}
	if cfg.Publish.S3 == nil {
		return errors.ConfigError("no publish target configured").WithContext("field", "publish.s3").Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := newPublisher(ctx, cfg.Publish.S3, logger)
	if err != nil {
		return err
	}
	res, err := pub.Publish(ctx, cfg.Output.Directory)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Published %d files (%s), %d unchanged\n",
		res.Uploaded, bytefmt.ByteSize(uint64(res.Bytes)), res.Unchanged)
	return nil
}
