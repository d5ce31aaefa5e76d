package commands

import (
	"context"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/git"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/images"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// runtime holds the collaborators built from one configuration.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prom.Registry
	history  history.Store
	notifier notify.Notifier
	service  *build.DefaultService
}

type runtimeOptions struct {
	// publish attaches the S3 uploader to successful builds when configured.
	publish bool
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, o runtimeOptions) (*runtime, error) {
	parsers := plugin.NewRegistry()
	if err := transforms.Register(parsers, specs(cfg.Parsers.File), specs(cfg.Parsers.Dir), transforms.Settings{
		Images: imageSettings(cfg.Images),
		Logger: logger,
	}); err != nil {
		return nil, errors.ConfigError("register parsers").WithCause(err).Build()
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: metrics.NewRegistry(),
		history:  history.NoopStore{},
		notifier: notify.Noop{},
	}

	if cfg.History.Enabled() {
		store, err := history.NewSQLiteStore(cfg.History.DBPath())
		if err != nil {
			return nil, errors.HistoryError("open build history").
				WithContext("path", cfg.History.DBPath()).WithCause(err).Build()
		}
		rt.history = store
	}

	if cfg.Notify.NATSURL != "" {
		n, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			// Notifications are best effort; the build still runs.
			logger.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			rt.notifier = n
		}
	}

	ws, err := prepareWorkspace(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := []build.Option{
		build.WithFetcher(git.NewClient(ws.Path(), logger)),
		build.WithHistory(rt.history, cfg.History.Keep),
		build.WithNotifier(rt.notifier),
		build.WithRecorder(metrics.NewPrometheusRecorder(rt.registry)),
		build.WithLogger(logger),
	}
	if o.publish && cfg.Publish.S3 != nil {
		up, err := newPublisher(ctx, cfg.Publish.S3, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, build.WithUploader(up))
	}
	rt.service = build.NewService(parsers, opts...)
	return rt, nil
}

// Close releases the history store and the notifier connection.
func (r *runtime) Close() {
	r.notifier.Close()
	if err := r.history.Close(); err != nil {
		r.logger.Warn("Failed to close build history", logfields.Error(err))
	}
}

// request translates the configuration into a build request.
func (r *runtime) request(full bool) (build.Request, error) {
	sig, err := signature(r.cfg)
	if err != nil {
		return build.Request{}, errors.InternalError("compute configuration signature").WithCause(err).Build()
	}
	return build.Request{
		Roots:              roots(r.cfg.Sources),
		OutputDir:          r.cfg.Output.Directory,
		ManifestPath:       r.cfg.Output.ManifestPath(),
		Full:               full,
		Signature:          sig,
		Concurrency:        r.cfg.Build.Concurrency,
		SkipParserFailures: r.cfg.Build.SkipParserFailures,
	}, nil
}

func (r *runtime) run(ctx context.Context, full bool) (*build.Result, error) {
	req, err := r.request(full)
	if err != nil {
		return nil, err
	}
	return r.service.Run(ctx, req)
}

// prepareWorkspace creates the checkout directory when git sources are
// configured and drops checkouts of sources that were removed.
func prepareWorkspace(cfg *config.Config, logger *slog.Logger) (*workspace.Manager, error) {
	ws := workspace.NewManager(cfg.Workspace, logger)
	var names []string
	for _, s := range cfg.Sources {
		if s.Git != nil {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return ws, nil
	}
	if err := ws.Create(); err != nil {
		return nil, err
	}
	if _, err := ws.Prune(names); err != nil {
		return nil, err
	}
	return ws, nil
}

func roots(sources []config.Source) []build.Root {
	out := make([]build.Root, 0, len(sources))
	for _, s := range sources {
		root := build.Root{Name: s.Name, Path: s.Path}
		if s.Git != nil {
			root.Path = ""
			root.Remote = &git.Remote{
				Name:   s.Name,
				URL:    s.Git.URL,
				Branch: s.Git.Branch,
				Token:  s.Git.Token(),
			}
		}
		out = append(out, root)
	}
	return out
}

// signature covers everything but source mtimes that changes build output.
// Concurrency is left out; it does not affect the result.
func signature(cfg *config.Config) (*incremental.BuildSignature, error) {
	sources := make([]incremental.SourceRef, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		ref := incremental.SourceRef{Name: s.Name, Path: s.Path}
		if s.Git != nil {
			ref.Path = ""
			ref.URL = s.Git.URL
			ref.Branch = s.Git.Branch
		}
		sources = append(sources, ref)
	}

	parsers := make([]incremental.ParserRef, 0, len(cfg.Parsers.File)+len(cfg.Parsers.Dir))
	for _, p := range cfg.Parsers.File {
		parsers = append(parsers, incremental.ParserRef{Kind: "file", Name: p.Name, Options: p.Options})
	}
	for _, p := range cfg.Parsers.Dir {
		parsers = append(parsers, incremental.ParserRef{Kind: "dir", Name: p.Name, Options: p.Options})
	}

	return incremental.ComputeSignature(sources, parsers, map[string]any{
		"images.web_size":      cfg.Images.WebSize,
		"images.thumb_size":    cfg.Images.ThumbSize,
		"images.quality":       cfg.Images.Quality,
		"skip_parser_failures": cfg.Build.SkipParserFailures,
	})
}

func specs(in []config.ParserSpec) []transforms.Spec {
	out := make([]transforms.Spec, len(in))
	for i, p := range in {
		out[i] = transforms.Spec{Name: p.Name, Options: p.Options}
	}
	return out
}

func imageSettings(c config.ImagesConfig) images.Settings {
	s := images.DefaultSettings()
	if len(c.WebSize) == 2 {
		s.Web = images.Size{Width: c.WebSize[0], Height: c.WebSize[1]}
	}
	if len(c.ThumbSize) == 2 {
		s.Thumb = images.Size{Width: c.ThumbSize[0], Height: c.ThumbSize[1]}
	}
	if c.Quality > 0 {
		s.Quality = c.Quality
	}
	return s
}

func newPublisher(ctx context.Context, c *config.S3Config, logger *slog.Logger) (*publish.Publisher, error) {
	t := publish.Target{
		Bucket:   c.Bucket,
		Prefix:   c.Prefix,
		Region:   c.Region,
		Endpoint: c.Endpoint,
	}
	if c.AccessKeyEnv != "" && c.SecretKeyEnv != "" {
		t.AccessKey = os.Getenv(c.AccessKeyEnv)
		t.SecretKey = os.Getenv(c.SecretKeyEnv)
	}
	return publish.New(ctx, t, logger)
}
