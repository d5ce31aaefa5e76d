package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to list" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, g.logger())
	if err != nil {
		return err
	}
	if !cfg.History.Enabled() {
		return errors.ConfigError("build history is disabled").WithContext("field", "history.path").Build()
	}

	store, err := history.NewSQLiteStore(cfg.History.DBPath())
	if err != nil {
		return errors.HistoryError("open build history").
			WithContext("path", cfg.History.DBPath()).WithCause(err).Build()
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(g.out(), "No builds recorded")
		return nil
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDURATION\tSOURCES\tTRANSFORMED\tREUSED\tERROR")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			statusLabel(r),
			(time.Duration(r.Duration) * time.Millisecond).String(),
			strings.Join(r.Sources, ","),
			r.Stats.FilesTransformed,
			r.Stats.FilesReused,
			r.Error,
		)
	}
	return tw.Flush()
}

func statusLabel(r *history.BuildRecord) string {
	if r.Full {
		return string(r.Status) + " (full)"
	}
	return string(r.Status)
}
