package walker

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// fileParser is a configurable FileParser that counts its invocations.
type fileParser struct {
	name   string
	suffix string
	copy   bool
	calls  atomic.Int32
	fn     func(srcPath, name string) (manifest.Tree, error)
}

func (p *fileParser) Name() string           { return p.name }
func (p *fileParser) Match(name string) bool { return strings.HasSuffix(name, p.suffix) }
func (p *fileParser) CopyFile() bool         { return p.copy }
func (p *fileParser) Transform(_ context.Context, srcPath, name, _ string) (manifest.Tree, error) {
	p.calls.Add(1)
	if p.fn == nil {
		return manifest.Tree{}, nil
	}
	return p.fn(srcPath, name)
}

// emptyDir prunes every directory it matches.
type emptyDir struct {
	match string
	fn    func(destDir string)
}

func (p emptyDir) Match(name string) bool { return name == p.match }
func (p emptyDir) Transform(_ context.Context, _ plugin.Scope, _, destDir string, _ manifest.Tree) (manifest.Tree, error) {
	if p.fn != nil {
		p.fn(destDir)
	}
	return manifest.Tree{}, nil
}

type fixture struct {
	src, out string
}

func newFixture(t *testing.T, files map[string]string) fixture {
	t.Helper()
	f := fixture{src: t.TempDir(), out: t.TempDir()}
	for rel, body := range files {
		path := filepath.Join(f.src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return f
}

func mtimeOf(t *testing.T, path string) float64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return manifest.MTimeOf(info)
}

// roundTrip persists and reloads a tree the way consecutive builds see it.
func roundTrip(t *testing.T, tree manifest.Tree) manifest.Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "all.json")
	require.NoError(t, manifest.Save(tree, path))
	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	return loaded
}

func TestBasicCopy(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "B1", "sub/b.txt": "B2"})

	got, err := New(plugin.NewRegistry(), f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)

	want := manifest.Tree{
		"a.txt": manifest.Tree{"path": "", "mtime": mtimeOf(t, filepath.Join(f.src, "a.txt"))},
		"sub": manifest.Tree{
			"path":  "",
			"mtime": mtimeOf(t, filepath.Join(f.src, "sub")),
			"b.txt": manifest.Tree{"path": "sub", "mtime": mtimeOf(t, filepath.Join(f.src, "sub", "b.txt"))},
		},
	}
	assert.Equal(t, want, got)

	a, err := os.ReadFile(filepath.Join(f.out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "B1", string(a))
	b, err := os.ReadFile(filepath.Join(f.out, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "B2", string(b))
}

func TestIdempotentRebuild(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "# A", "sub/b.md": "# B", "c.txt": "c"})
	md := &fileParser{name: "md", suffix: ".md", fn: func(_, name string) (manifest.Tree, error) {
		return manifest.Tree{"content": "<h1>" + name + "</h1>"}, nil
	}}
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(md)

	first, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	require.Equal(t, int32(2), md.calls.Load())
	prev := roundTrip(t, first)

	w := New(reg, f.out)
	second, err := w.Walk(context.Background(), f.src, f.out, prev)
	require.NoError(t, err)

	assert.Equal(t, int32(2), md.calls.Load(), "no transformer may run on an unchanged tree")
	assert.Equal(t, prev, roundTrip(t, second))
	assert.Equal(t, int64(3), w.Stats().FilesReused)
	assert.Equal(t, int64(0), w.Stats().FilesTransformed)
}

func TestSelectiveInvalidation(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"})
	var seen []string
	md := &fileParser{name: "md", suffix: ".md", fn: func(_, name string) (manifest.Tree, error) {
		seen = append(seen, name)
		return manifest.Tree{"content": name}, nil
	}}
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(md)

	first, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	prev := roundTrip(t, first)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.src, "b.md"), later, later))
	seen = nil

	second, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, prev)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.md"}, seen)
	assert.Equal(t, prev["a.md"], second["a.md"])
	assert.Equal(t, prev["c.md"], second["c.md"])
	newMTime, _ := second.Sub("b.md").MTime()
	oldMTime, _ := prev.Sub("b.md").MTime()
	assert.Greater(t, newMTime, oldMTime)
}

func TestCacheReuseSkipsFailingTransformer(t *testing.T) {
	f := newFixture(t, map[string]string{"x.md": "# X"})

	reg := plugin.NewRegistry()
	reg.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(string, string) (manifest.Tree, error) {
		return manifest.Tree{"content": "<h1>X</h1>"}, nil
	}})
	first, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	prev := roundTrip(t, first)

	failing := plugin.NewRegistry()
	failing.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(string, string) (manifest.Tree, error) {
		return nil, fmt.Errorf("transformer must not run for a cached entry")
	}})
	second, err := New(failing, f.out).Walk(context.Background(), f.src, f.out, prev)
	require.NoError(t, err)
	assert.Equal(t, "<h1>X</h1>", second.Sub("x.md")["content"])
	assert.Equal(t, prev.Sub("x.md"), second.Sub("x.md"))
}

func TestDefaultDispatch(t *testing.T) {
	f := newFixture(t, map[string]string{"plain.css": "body{}", "_header.html": "<header/>"})

	got, err := New(plugin.NewRegistry(), f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"path", "mtime"}, keys(got.Sub("plain.css")))
	assert.FileExists(t, filepath.Join(f.out, "plain.css"))

	assert.Equal(t, "<header/>", got.Sub("_header.html")["content"])
	assert.NoFileExists(t, filepath.Join(f.out, "_header.html"))
}

func TestPruning(t *testing.T) {
	f := newFixture(t, map[string]string{"drafts/a.md": "a", "keep/b.txt": "b"})
	require.NoError(t, os.MkdirAll(filepath.Join(f.src, "hollow"), 0o755))

	reg := plugin.NewRegistry()
	reg.RegisterDirParser(emptyDir{match: "drafts"})
	w := New(reg, f.out)

	got, err := w.Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)

	for _, name := range []string{"drafts", "hollow"} {
		assert.NotContains(t, got, name)
		assert.NoDirExists(t, filepath.Join(f.out, name))
	}
	assert.Contains(t, got, "keep")
	assert.Equal(t, int64(2), w.Stats().DirsPruned)
}

func TestPruningRequiresEmptyOutput(t *testing.T) {
	f := newFixture(t, map[string]string{"gen/a.md": "a"})
	reg := plugin.NewRegistry()
	reg.RegisterDirParser(emptyDir{match: "gen", fn: func(destDir string) {
		_ = os.WriteFile(filepath.Join(destDir, "stray.html"), nil, 0o644)
	}})

	_, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func TestUnexpectedEntryKind(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "a"})
	require.NoError(t, os.Symlink(filepath.Join(f.src, "nowhere"), filepath.Join(f.src, "dangling")))

	_, err := New(plugin.NewRegistry(), f.out).Walk(context.Background(), f.src, f.out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedEntryKind)

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryEntryKind, classified.Category())
	path, _ := classified.Context().GetString("path")
	assert.Equal(t, filepath.Join(f.src, "dangling"), path)
}

func TestSymlinksAreFollowed(t *testing.T) {
	f := newFixture(t, map[string]string{"real/a.txt": "a"})
	require.NoError(t, os.Symlink(filepath.Join(f.src, "real"), filepath.Join(f.src, "alias")))

	got, err := New(plugin.NewRegistry(), f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	assert.Contains(t, got.Sub("alias"), "a.txt")
	assert.FileExists(t, filepath.Join(f.out, "alias", "a.txt"))
}

func TestSymlinkLoopIsRejected(t *testing.T) {
	f := newFixture(t, map[string]string{"docs/a.txt": "a"})
	require.NoError(t, os.Symlink(f.src, filepath.Join(f.src, "docs", "up")))

	_, err := New(plugin.NewRegistry(), f.out).Walk(context.Background(), f.src, f.out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedEntryKind)
	assert.True(t, errors.HasCategory(err, errors.CategoryEntryKind))
	assert.NoDirExists(t, filepath.Join(f.out, "docs", "up"))
}

func TestWrittenExcludesReusedEntries(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	reg := plugin.NewRegistry()

	w := New(reg, f.out)
	first, err := w.Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, w.Written())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.src, "sub", "b.txt"), later, later))

	w = New(reg, f.out)
	_, err = w.Walk(context.Background(), f.src, f.out, roundTrip(t, first))
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/b.txt"}, w.Written())
}

func TestParserFailureIsFatal(t *testing.T) {
	f := newFixture(t, map[string]string{"bad.md": "x"})
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(string, string) (manifest.Tree, error) {
		return nil, stderrors.New("render failed")
	}})

	_, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParserFailure)
	assert.True(t, errors.HasCategory(err, errors.CategoryParser))
	assert.Contains(t, err.Error(), "bad.md")
	assert.Contains(t, err.Error(), "parser=md")
}

func TestSkipParserFailures(t *testing.T) {
	f := newFixture(t, map[string]string{"bad.md": "x", "good.txt": "y"})
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(string, string) (manifest.Tree, error) {
		return nil, stderrors.New("render failed")
	}})
	w := New(reg, f.out, WithSkipParserFailures(true))

	got, err := w.Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	assert.NotContains(t, got, "bad.md")
	assert.Contains(t, got, "good.txt")

	skipped := w.Skipped()
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad.md", skipped[0].Name)
	assert.Equal(t, "md", skipped[0].Parser)
	assert.Equal(t, filepath.Join(f.src, "bad.md"), skipped[0].Path)
	assert.Equal(t, int64(1), w.Stats().Skipped)
}

func TestMissingCopiedOutputIsRestored(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "a"})
	reg := plugin.NewRegistry()

	first, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.out, "a.txt")))

	second, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, first)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.out, "a.txt"))
	assert.Equal(t, first, second)
}

func TestConcurrentWalkMatchesSequential(t *testing.T) {
	files := map[string]string{}
	for i := range 6 {
		for j := range 4 {
			files[fmt.Sprintf("d%d/n%d/f%d.txt", i, j, j)] = "x"
			files[fmt.Sprintf("d%d/top%d.md", i, j)] = "y"
		}
	}
	f := newFixture(t, files)
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(_, name string) (manifest.Tree, error) {
		return manifest.Tree{"content": name}, nil
	}})

	sequential, err := New(reg, f.out).Walk(context.Background(), f.src, f.out, nil)
	require.NoError(t, err)

	out := t.TempDir()
	parallel, err := New(reg, out, WithConcurrency(4)).Walk(context.Background(), f.src, out, nil)
	require.NoError(t, err)
	assert.Equal(t, sequential, parallel)
}

func TestConcurrentWalkReportsChildFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"a/ok.txt": "x", "b/bad.md": "x", "c/ok.txt": "x"})
	reg := plugin.NewRegistry()
	reg.RegisterFileParser(&fileParser{name: "md", suffix: ".md", fn: func(string, string) (manifest.Tree, error) {
		return nil, stderrors.New("boom")
	}})

	_, err := New(reg, f.out, WithConcurrency(3)).Walk(context.Background(), f.src, f.out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParserFailure)
}

func TestCancelledWalk(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(plugin.NewRegistry(), f.out).Walk(ctx, f.src, f.out, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.HasCategory(err, errors.CategoryRuntime))
}

func TestRelPath(t *testing.T) {
	w := New(plugin.NewRegistry(), "/out")
	assert.Equal(t, "", w.RelPath("/out"))
	assert.Equal(t, "a/b", w.RelPath("/out/a/b"))
}

func keys(t manifest.Tree) []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	return out
}
