package plugin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

type suffixParser struct {
	name   string
	suffix string
}

func (p suffixParser) Name() string           { return p.name }
func (p suffixParser) Match(name string) bool { return strings.HasSuffix(name, p.suffix) }
func (p suffixParser) CopyFile() bool         { return false }
func (p suffixParser) Transform(context.Context, string, string, string) (manifest.Tree, error) {
	return manifest.Tree{"content": p.name}, nil
}

type namedDir struct{ dir string }

func (p namedDir) Match(name string) bool { return name == p.dir }
func (p namedDir) Transform(context.Context, Scope, string, string, manifest.Tree) (manifest.Tree, error) {
	return nil, nil
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "default", NameOf(r.ResolveFileParser("a.txt")))
	assert.Equal(t, "default", NameOf(r.ResolveDirParser("sub")))
}

func TestLaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.RegisterFileParser(suffixParser{name: "md", suffix: ".md"})
	r.RegisterFileParser(suffixParser{name: "md-html", suffix: ".md"})
	r.RegisterFileParser(suffixParser{name: "png", suffix: ".png"})

	assert.Equal(t, "md-html", NameOf(r.ResolveFileParser("x.md")))
	assert.Equal(t, "png", NameOf(r.ResolveFileParser("x.png")))
	assert.Equal(t, "default", NameOf(r.ResolveFileParser("x.txt")))

	names := []string{}
	for _, p := range r.FileParsers() {
		names = append(names, NameOf(p))
	}
	assert.Equal(t, []string{"png", "md-html", "md"}, names)
}

func TestResolveDirParser(t *testing.T) {
	r := NewRegistry()
	r.RegisterDirParser(namedDir{dir: "blog"})

	assert.IsType(t, namedDir{}, r.ResolveDirParser("blog"))
	assert.IsType(t, DefaultDirParser{}, r.ResolveDirParser("blogs"))
	assert.Len(t, r.DirParsers(), 1)
}

func TestDispatchSteps(t *testing.T) {
	parsers := []FileParser{suffixParser{name: "a", suffix: ".a"}, suffixParser{name: "b", suffix: ".b"}}

	step := dispatch(parsers, "x.b")
	require.True(t, step.Handled)
	assert.Equal(t, "b", NameOf(step.Parser))

	assert.False(t, dispatch(parsers, "x.c").Handled)
	assert.False(t, dispatch[FileParser](nil, "x.a").Handled)
}

func TestDefaultFileParser(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "_snippet.html")
	require.NoError(t, os.WriteFile(private, []byte("<p>hi</p>"), 0o644))

	p := DefaultFileParser{}
	assert.True(t, p.CopyFile())

	fields, err := p.Transform(context.Background(), private, "_snippet.html", dir)
	require.NoError(t, err)
	assert.Equal(t, manifest.Tree{"content": "<p>hi</p>"}, fields)

	fields, err = p.Transform(context.Background(), filepath.Join(dir, "missing.txt"), "missing.txt", dir)
	require.NoError(t, err)
	assert.Empty(t, fields)

	_, err = p.Transform(context.Background(), filepath.Join(dir, "_gone"), "_gone", dir)
	assert.Error(t, err)

	binary := filepath.Join(dir, "_blob.bin")
	require.NoError(t, os.WriteFile(binary, []byte{'o', 'k', 0xff, 0xfe}, 0o644))
	_, err = p.Transform(context.Background(), binary, "_blob.bin", dir)
	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestNameOfFallsBackToType(t *testing.T) {
	assert.Equal(t, "plugin.namedDir", NameOf(namedDir{}))
}
