// Package walker mirrors a source directory tree into the output tree and
// builds the manifest subtree for it.
//
// Each child is dispatched through the parser registry. Files pass the
// incremental gate first and are reused verbatim from the previous manifest
// when unchanged. Directories are always re-descended and pruned when their
// parser returns an empty subtree.
package walker

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/fsutil"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// Option configures a Walker.
type Option func(*Walker)

// WithConcurrency lets up to n goroutines walk sibling subdirectories.
// Values below 2 keep the walk sequential.
func WithConcurrency(n int) Option {
	return func(w *Walker) {
		if n > 1 {
			w.tokens = make(chan struct{}, n-1)
		}
	}
}

// WithSkipParserFailures records failing entries and omits them instead of aborting.
func WithSkipParserFailures(skip bool) Option {
	return func(w *Walker) { w.skipFailures = skip }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Walker) {
		if r != nil {
			w.recorder = r
		}
	}
}

// Walker walks source trees for a single build. Stats accumulate across
// every Walk call made on the same Walker.
type Walker struct {
	registry     *plugin.Registry
	root         string
	logger       *slog.Logger
	recorder     metrics.Recorder
	skipFailures bool
	tokens       chan struct{}

	stats     counters
	mu        sync.Mutex
	skipped   []SkippedEntry
	written   map[string]struct{}
}

var _ plugin.Scope = (*Walker)(nil)

// New creates a walker writing below outputRoot.
func New(registry *plugin.Registry, outputRoot string, opts ...Option) *Walker {
	w := &Walker{
		registry: registry,
		root:     filepath.Clean(outputRoot),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		written:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stats returns the counters accumulated so far.
func (w *Walker) Stats() Stats { return w.stats.snapshot() }

// Skipped returns the entries omitted after parser failures, in the order they failed.
func (w *Walker) Skipped() []SkippedEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SkippedEntry(nil), w.skipped...)
}

// Written returns the output-relative paths of the file entries whose parser
// ran, sorted. Reused entries are not included.
func (w *Walker) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.written))
	for p := range w.written {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Walk builds the subtree for srcDir, writing output below destDir.
// prev is the previous manifest subtree for this directory; it is only read.
func (w *Walker) Walk(ctx context.Context, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error) {
	return w.Descend(ctx, srcDir, destDir, prev)
}

type childResult struct {
	rec manifest.Tree
	ok  bool
}

// Descend implements plugin.Scope.
func (w *Walker) Descend(ctx context.Context, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error) {
	resolved, err := filepath.EvalSymlinks(srcDir)
	if err != nil {
		return nil, ioFailure("resolve source directory", srcDir, err)
	}
	ctx = withAncestor(ctx, resolved)

	if err := ensureDir(destDir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, ioFailure("read source directory", srcDir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	results := make([]childResult, len(entries))
	var inlineErr error
	for i, entry := range entries {
		if err := gctx.Err(); err != nil {
			inlineErr = cancelled(gctx, err)
			break
		}

		name := entry.Name()
		srcPath := filepath.Join(srcDir, name)
		info, err := os.Stat(srcPath)
		if err != nil {
			if entry.Type()&os.ModeSymlink != 0 && os.IsNotExist(err) {
				inlineErr = unexpectedKind(srcPath, entry.Type())
			} else {
				inlineErr = ioFailure("stat source entry", srcPath, err)
			}
			break
		}

		switch {
		case info.IsDir():
			if w.tryAcquire() {
				g.Go(func() error {
					defer w.release()
					rec, ok, err := w.subdir(gctx, srcDir, destDir, name, info, prev)
					results[i] = childResult{rec: rec, ok: ok}
					return err
				})
				continue
			}
			rec, ok, err := w.subdir(gctx, srcDir, destDir, name, info, prev)
			results[i] = childResult{rec: rec, ok: ok}
			inlineErr = err
		case info.Mode().IsRegular():
			rec, ok, err := w.file(gctx, srcDir, destDir, name, info, prev)
			results[i] = childResult{rec: rec, ok: ok}
			inlineErr = err
		default:
			inlineErr = unexpectedKind(srcPath, info.Mode())
		}
		if inlineErr != nil {
			break
		}
	}

	if inlineErr != nil {
		cancel()
		// A sibling goroutine failing first cancels gctx; report its error, not the cancellation.
		if gerr := g.Wait(); gerr != nil && isCancellation(inlineErr) {
			return nil, gerr
		}
		return nil, inlineErr
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := make(manifest.Tree, len(entries))
	for i, entry := range entries {
		if results[i].ok {
			tree[entry.Name()] = results[i].rec
		}
	}
	return tree, nil
}

// Subdir implements plugin.Scope.
func (w *Walker) Subdir(ctx context.Context, srcDir, destDir, name string, prev manifest.Tree) (manifest.Tree, bool, error) {
	srcPath := filepath.Join(srcDir, name)
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, false, ioFailure("stat source entry", srcPath, err)
	}
	if !info.IsDir() {
		return nil, false, unexpectedKind(srcPath, info.Mode())
	}
	return w.subdir(ctx, srcDir, destDir, name, info, prev)
}

// File implements plugin.Scope.
func (w *Walker) File(ctx context.Context, srcDir, destDir, name string, prev manifest.Tree) (manifest.Tree, bool, error) {
	srcPath := filepath.Join(srcDir, name)
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, false, ioFailure("stat source entry", srcPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, unexpectedKind(srcPath, info.Mode())
	}
	return w.file(ctx, srcDir, destDir, name, info, prev)
}

// RelPath implements plugin.Scope.
func (w *Walker) RelPath(destDir string) string {
	rel, err := filepath.Rel(w.root, filepath.Clean(destDir))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (w *Walker) subdir(ctx context.Context, srcDir, destDir, name string, info os.FileInfo, prev manifest.Tree) (manifest.Tree, bool, error) {
	srcPath := filepath.Join(srcDir, name)
	destPath := filepath.Join(destDir, name)
	parser := w.registry.ResolveDirParser(name)

	if isSymlink(srcPath) {
		resolved, err := filepath.EvalSymlinks(srcPath)
		if err != nil {
			return nil, false, ioFailure("resolve source directory", srcPath, err)
		}
		if isAncestor(ctx, resolved) {
			return nil, false, symlinkLoop(srcPath, resolved)
		}
	}

	if err := ensureDir(destPath); err != nil {
		return nil, false, err
	}

	sub, err := parser.Transform(ctx, w, srcPath, destPath, prev.Sub(name))
	if err != nil {
		switch {
		case errors.IsClassified(err):
			return nil, false, err
		case isCancellation(err) || ctx.Err() != nil:
			return nil, false, cancelled(ctx, err)
		}
		if ferr := w.failed(srcPath, name, plugin.NameOf(parser), err); ferr != nil {
			return nil, false, ferr
		}
		_ = os.Remove(destPath)
		return nil, false, nil
	}

	if len(sub) == 0 {
		if err := os.Remove(destPath); err != nil {
			return nil, false, ioFailure("remove pruned directory", destPath, err)
		}
		w.stats.pruned.Add(1)
		w.recorder.IncEntry(metrics.EntryPruned)
		w.logger.Debug("Pruned empty directory", logfields.Path(srcPath))
		return nil, false, nil
	}

	rec := make(manifest.Tree, len(sub)+2)
	for k, v := range sub {
		rec[k] = v
	}
	for _, reserved := range []string{manifest.KeyPath, manifest.KeyMTime} {
		if _, clash := sub[reserved]; clash {
			w.logger.Warn("Directory entry shadowed by record stamp",
				logfields.Path(filepath.Join(srcPath, reserved)))
		}
	}
	rec.Stamp(w.RelPath(destDir), manifest.MTimeOf(info))
	return rec, true, nil
}

func (w *Walker) file(ctx context.Context, srcDir, destDir, name string, info os.FileInfo, prev manifest.Tree) (manifest.Tree, bool, error) {
	srcPath := filepath.Join(srcDir, name)
	mtime := manifest.MTimeOf(info)
	parser := w.registry.ResolveFileParser(name)

	if !incremental.IsDirty(name, mtime, prev) {
		cached := prev.Sub(name)
		if !w.outputMissing(parser, cached, filepath.Join(destDir, name)) {
			w.stats.reused.Add(1)
			w.recorder.IncEntry(metrics.EntryReused)
			w.logger.Debug("Reused cached entry", logfields.Path(srcPath))
			return cached, true, nil
		}
		w.logger.Info("Output missing for cached entry, reprocessing", logfields.Path(srcPath))
	}

	parserName := plugin.NameOf(parser)
	start := time.Now()
	fields, err := parser.Transform(ctx, srcPath, name, destDir)
	w.recorder.ObserveParserDuration(parserName, time.Since(start))
	if err != nil {
		if isCancellation(err) || ctx.Err() != nil {
			return nil, false, cancelled(ctx, err)
		}
		if ferr := w.failed(srcPath, name, parserName, err); ferr != nil {
			return nil, false, ferr
		}
		return nil, false, nil
	}

	rec := make(manifest.Tree, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	rec.Stamp(w.RelPath(destDir), mtime)

	if !rec.HasContent() && parser.CopyFile() {
		destPath := filepath.Join(destDir, name)
		n, err := fsutil.CopyFile(srcPath, destPath)
		if err != nil {
			return nil, false, ioFailure("copy file", destPath, err)
		}
		w.stats.copied.Add(1)
		w.stats.bytes.Add(n)
		w.recorder.IncEntry(metrics.EntryCopied)
		w.recorder.AddBytesCopied(n)
	}

	w.mu.Lock()
	w.written[path.Join(w.RelPath(destDir), name)] = struct{}{}
	w.mu.Unlock()

	w.stats.transformed.Add(1)
	w.recorder.IncEntry(metrics.EntryTransformed)
	w.logger.Debug("Transformed entry", logfields.Path(srcPath), logfields.Parser(parserName))
	return rec, true, nil
}

// outputMissing reports whether a cached record relies on a verbatim copy
// that is no longer present in the output tree.
func (w *Walker) outputMissing(parser plugin.FileParser, cached manifest.Tree, destPath string) bool {
	if cached.HasContent() || !parser.CopyFile() {
		return false
	}
	_, err := os.Stat(destPath)
	return os.IsNotExist(err)
}

// failed returns the fatal error for a parser failure, or records it and
// returns nil in skip mode.
func (w *Walker) failed(srcPath, name, parser string, cause error) error {
	if !w.skipFailures {
		return parserFailure(srcPath, name, parser, cause)
	}
	w.mu.Lock()
	w.skipped = append(w.skipped, SkippedEntry{Path: srcPath, Name: name, Parser: parser, Error: cause.Error()})
	w.mu.Unlock()
	w.stats.skipped.Add(1)
	w.recorder.IncEntry(metrics.EntrySkipped)
	w.logger.Warn("Skipping entry after parser failure",
		logfields.Path(srcPath), logfields.Parser(parser), logfields.Error(cause))
	return nil
}

func (w *Walker) tryAcquire() bool {
	if w.tokens == nil {
		return false
	}
	select {
	case w.tokens <- struct{}{}:
		return true
	default:
		return false
	}
}

func (w *Walker) release() { <-w.tokens }

type ancestorsKey struct{}

type ancestor struct {
	dir    string
	parent *ancestor
}

// withAncestor records dir as a resolved directory on the current descent path.
func withAncestor(ctx context.Context, dir string) context.Context {
	parent, _ := ctx.Value(ancestorsKey{}).(*ancestor)
	return context.WithValue(ctx, ancestorsKey{}, &ancestor{dir: dir, parent: parent})
}

func isAncestor(ctx context.Context, dir string) bool {
	for a, _ := ctx.Value(ancestorsKey{}).(*ancestor); a != nil; a = a.parent {
		if a.dir == dir {
			return true
		}
	}
	return false
}

func isSymlink(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// ensureDir creates dir. An existing directory is not an error.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioFailure("create output directory", dir, err)
	}
	return nil
}
