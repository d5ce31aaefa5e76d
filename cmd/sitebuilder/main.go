package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/cmd/sitebuilder/commands"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	kctx := kong.Parse(cli,
		kong.Name("sitebuilder"),
		kong.Description("Incremental static site builder"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := kctx.Run(global); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
