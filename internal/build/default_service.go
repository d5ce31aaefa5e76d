package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/git"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/walker"
)

// Fetcher resolves git roots to local checkouts.
type Fetcher interface {
	Fetch(ctx context.Context, r git.Remote) (*git.Checkout, error)
}

// Uploader publishes the output directory after a successful build.
type Uploader interface {
	Publish(ctx context.Context, outputDir string) (*publish.Result, error)
}

type pruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// Option configures a DefaultService.
type Option func(*DefaultService)

// WithFetcher sets the git fetcher used for remote roots.
func WithFetcher(f Fetcher) Option { return func(s *DefaultService) { s.fetcher = f } }

// WithHistory records every run in store and trims it to keep entries
// (0 keeps everything).
func WithHistory(store history.Store, keep int) Option {
	return func(s *DefaultService) {
		if store != nil {
			s.history = store
			s.historyKeep = keep
		}
	}
}

// WithNotifier announces finished builds.
func WithNotifier(n notify.Notifier) Option {
	return func(s *DefaultService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithUploader publishes successful builds.
func WithUploader(u Uploader) Option { return func(s *DefaultService) { s.uploader = u } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *DefaultService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DefaultService) {
		if l != nil {
			s.logger = l
		}
	}
}

// DefaultService is the standard Service.
type DefaultService struct {
	registry    *plugin.Registry
	fetcher     Fetcher
	history     history.Store
	historyKeep int
	notifier    notify.Notifier
	uploader    Uploader
	recorder    metrics.Recorder
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

var _ Service = (*DefaultService)(nil)

// NewService creates a service dispatching through registry.
func NewService(registry *plugin.Registry, opts ...Option) *DefaultService {
	s := &DefaultService{
		registry: registry,
		history:  history.NoopStore{},
		notifier: notify.Noop{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one build.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{ID: s.newID(), StartTime: s.now(), Full: req.Full}
	if req.Full {
		res.FullReason = "requested"
	}
	res.ManifestPath = req.ManifestPath
	if res.ManifestPath == "" {
		res.ManifestPath = filepath.Join(req.OutputDir, manifest.DefaultFileName)
	}
	logger := s.logger.With(logfields.BuildID(res.ID))
	logger.Info("Build started", slog.Any("sources", req.Sources()), logfields.Path(req.OutputDir))

	w := walker.New(s.registry, req.OutputDir,
		walker.WithConcurrency(req.Concurrency),
		walker.WithSkipParserFailures(req.SkipParserFailures),
		walker.WithLogger(logger),
		walker.WithRecorder(s.recorder))

	err := s.execute(ctx, logger, req, res, w)
	res.Stats = w.Stats()
	res.Skipped = w.Skipped()
	res.EndTime = s.now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	switch {
	case err == nil:
		res.Status = history.StatusSuccess
	case ctx.Err() != nil:
		res.Status = history.StatusCancelled
	default:
		res.Status = history.StatusFailed
	}

	s.finish(ctx, logger, req, res, err)
	return res, err
}

func (s *DefaultService) execute(ctx context.Context, logger *slog.Logger, req Request, res *Result, w *walker.Walker) error {
	if len(req.Roots) == 0 {
		return errors.ValidationError("no source roots").Build()
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return errors.FileSystemError("create output directory").
			WithContext("path", req.OutputDir).WithCause(err).Build()
	}

	prev, err := s.previous(ctx, logger, req, res)
	if err != nil {
		return err
	}

	trees := make([]manifest.Tree, 0, len(req.Roots))
	state := make(manifest.Tree, len(req.Roots))
	for _, root := range req.Roots {
		dir, err := s.resolve(ctx, logger, root)
		if err != nil {
			return err
		}
		// Entries an earlier root rewrote in this build must be written again
		// by every later root that holds them.
		own := invalidate(prev.Sub(root.Name), w.Written())
		tree, err := w.Walk(ctx, dir, req.OutputDir, own)
		if err != nil {
			return err
		}
		logger.Debug("Walked source root", logfields.Source(root.Name), logfields.Count(len(tree)))
		trees = append(trees, tree)
		state[root.Name] = tree
	}

	merged := manifest.MergeAll(trees...)
	if err := ctx.Err(); err != nil {
		return errors.RuntimeError("build cancelled").WithCause(err).Build()
	}
	if err := saveRootState(state, req.rootStatePath()); err != nil {
		return err
	}
	if err := manifest.Save(merged, res.ManifestPath); err != nil {
		return err
	}
	res.Manifest = merged
	if hash, err := manifest.Hash(merged); err == nil {
		res.ManifestHash = hash
	}
	return nil
}

// previous loads the per-root trees of the last successful build, keyed by
// root name.
func (s *DefaultService) previous(ctx context.Context, logger *slog.Logger, req Request, res *Result) (manifest.Tree, error) {
	if req.Full {
		return manifest.Tree{}, nil
	}
	if _, err := manifest.Load(res.ManifestPath); err != nil {
		if stderrors.Is(err, manifest.ErrColdStart) {
			res.Full, res.FullReason = true, "cold start"
			logger.Info("No previous manifest, building from scratch", logfields.Path(res.ManifestPath))
			return manifest.Tree{}, nil
		}
		return nil, err
	}
	prev, err := manifest.Load(req.rootStatePath())
	if stderrors.Is(err, manifest.ErrColdStart) {
		res.Full, res.FullReason = true, "cold start"
		logger.Info("No per-source state, building from scratch", logfields.Path(req.rootStatePath()))
		return manifest.Tree{}, nil
	}
	if err != nil {
		return nil, err
	}

	if req.Signature == nil {
		return prev, nil
	}
	last, err := s.history.LastSuccess(ctx)
	switch {
	case stderrors.Is(err, history.ErrNotFound):
		return prev, nil
	case err != nil:
		logger.Warn("Could not read build history, trusting previous manifest", logfields.Error(err))
		return prev, nil
	case last.Signature != "" && last.Signature != req.Signature.BuildHash:
		res.Full, res.FullReason = true, "configuration changed"
		logger.Info("Configuration changed since last successful build, rebuilding from scratch",
			slog.String("previous", last.Signature), slog.String("current", req.Signature.BuildHash))
		return manifest.Tree{}, nil
	}
	return prev, nil
}

// invalidate returns prev without the file records at the given
// output-relative paths. prev itself is not modified.
func invalidate(prev manifest.Tree, paths []string) manifest.Tree {
	if len(prev) == 0 || len(paths) == 0 {
		return prev
	}
	out := prev.Clone()
	for _, p := range paths {
		dir, name := path.Split(p)
		parent := out
		for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
			if part == "" {
				continue
			}
			parent = parent.Sub(part)
		}
		if parent != nil {
			delete(parent, name)
		}
	}
	return out
}

func saveRootState(state manifest.Tree, p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.FileSystemError("create state directory").
			WithContext("path", filepath.Dir(p)).WithCause(err).Build()
	}
	return manifest.Save(state, p)
}

func (s *DefaultService) resolve(ctx context.Context, logger *slog.Logger, root Root) (string, error) {
	if root.Remote == nil {
		return root.Path, nil
	}
	if s.fetcher == nil {
		return "", errors.ConfigError("git source configured without a fetcher").
			WithContext("source", root.Name).Build()
	}
	start := time.Now()
	co, err := s.fetcher.Fetch(ctx, *root.Remote)
	s.recorder.ObserveSourceFetchDuration(root.Name, time.Since(start), err == nil)
	if err != nil {
		return "", err
	}
	logger.Debug("Resolved git source", logfields.Source(root.Name), logfields.Path(co.Path))
	return co.Path, nil
}

// finish records the run everywhere it is reported. Failures here never
// change the build outcome.
func (s *DefaultService) finish(ctx context.Context, logger *slog.Logger, req Request, res *Result, buildErr error) {
	s.recorder.ObserveBuildDuration(res.Duration)
	s.recorder.IncBuildOutcome(metrics.BuildOutcome(res.Status))

	if buildErr == nil && s.uploader != nil {
		pub, err := s.uploader.Publish(ctx, req.OutputDir)
		res.Published = pub
		if err != nil {
			logger.Warn("Publishing failed", logfields.Error(err))
		}
	}

	rec := &history.BuildRecord{
		ID:           res.ID,
		StartedAt:    res.StartTime.UTC(),
		Duration:     res.Duration.Milliseconds(),
		Status:       res.Status,
		Sources:      req.Sources(),
		Full:         res.Full,
		ManifestHash: res.ManifestHash,
		Stats:        res.Stats,
		Skipped:      res.Skipped,
	}
	if req.Signature != nil {
		rec.Signature = req.Signature.BuildHash
	}
	if buildErr != nil {
		rec.Error = buildErr.Error()
	}

	// Reporting must not be cut short by the cancellation that ended the build.
	rctx := context.WithoutCancel(ctx)
	if err := s.history.Record(rctx, rec); err != nil {
		logger.Warn("Failed to record build history", logfields.Error(err))
	} else if p, ok := s.history.(pruner); ok && s.historyKeep > 0 {
		if _, err := p.Prune(rctx, s.historyKeep); err != nil {
			logger.Warn("Failed to prune build history", logfields.Error(err))
		}
	}
	if err := s.notifier.Notify(rctx, notify.EventFromRecord(rec)); err != nil {
		logger.Warn("Failed to send build notification", logfields.Error(err))
	}

	attrs := []any{
		logfields.Status(string(res.Status)),
		logfields.DurationMS(float64(res.Duration.Microseconds()) / 1000),
		slog.Int64("transformed", res.Stats.FilesTransformed),
		slog.Int64("reused", res.Stats.FilesReused),
		slog.Int64("copied", res.Stats.FilesCopied),
		logfields.Bytes(bytefmt.ByteSize(uint64(max(res.Stats.BytesCopied, 0)))),
		slog.Int64("pruned", res.Stats.DirsPruned),
		slog.Int64("skipped", res.Stats.Skipped),
	}
	if res.Full {
		attrs = append(attrs, slog.String("full_reason", res.FullReason))
	}
	if buildErr != nil {
		logger.Error("Build failed", append(attrs, logfields.Error(buildErr))...)
		return
	}
	logger.Info("Build finished", attrs...)
}
