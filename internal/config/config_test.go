package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "site"), 0o755))
	path := writeConfig(t, dir, "sitebuilder.yaml", `
version: "1.0"
sources:
  - name: site
    path: ./site
parsers:
  file:
    - name: Markdown
`)

	cfg, res, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "build"), cfg.Output.Directory)
	assert.Equal(t, filepath.Join(dir, "build", "all.json"), cfg.Output.ManifestPath())
	assert.Equal(t, filepath.Join(dir, "site"), cfg.Sources[0].Path)
	assert.Equal(t, "markdown", cfg.Parsers.File[0].Name)
	assert.Len(t, res.Warnings, 1)

	assert.Equal(t, []int{1280, 720}, cfg.Images.WebSize)
	assert.Equal(t, []int{384, 216}, cfg.Images.ThumbSize)
	assert.Equal(t, 80, cfg.Images.Quality)
	assert.True(t, cfg.History.Enabled())
	assert.Equal(t, filepath.Join(dir, "build", ".sitebuilder", "history.db"), cfg.History.DBPath())
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.DebounceDuration())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "content"), 0o755))
	path := writeConfig(t, dir, "sitebuilder.toml", `
version = "1.0"

[output]
directory = "public"

[[sources]]
name = "content"
path = "content"

[[sources]]
name = "docs"
[sources.git]
url = "https://example.com/docs.git"
auth_token_env = "DOCS_TOKEN"

[[parsers.dir]]
name = "blog"
[parsers.dir.options]
template = "post.tmpl"

[history]
path = ""
`)
	t.Setenv("DOCS_TOKEN", "s3cret")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "public"), cfg.Output.Directory)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "s3cret", cfg.Sources[1].Git.Token())
	assert.Equal(t, "post.tmpl", cfg.Parsers.Dir[0].Options["template"])
	assert.False(t, cfg.History.Enabled())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "site"), 0o755))
	t.Setenv("SITEBUILDER_TEST_OUT", "dist")
	path := writeConfig(t, dir, "c.yaml", `
version: "1.0"
output:
  directory: ${SITEBUILDER_TEST_OUT}
sources:
  - {name: site, path: site}
`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist"), cfg.Output.Directory)
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SITEBUILDER_TEST_KEEP", "process")
	t.Cleanup(func() { _ = os.Unsetenv("SITEBUILDER_TEST_FROM_FILE") })
	writeConfig(t, dir, ".env", "SITEBUILDER_TEST_FROM_FILE=file\nSITEBUILDER_TEST_KEEP=file\n")

	loadEnvFiles()

	assert.Equal(t, "file", os.Getenv("SITEBUILDER_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("SITEBUILDER_TEST_KEEP"))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	path := writeConfig(t, dir, "bad.yaml", "version: \"1.0\"\nunknown_key: 1\n")
	_, _, err = Load(path)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	path = writeConfig(t, dir, "old.yaml", "version: \"0.9\"\n")
	_, _, err = Load(path)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	site := filepath.Join(root, "site")
	require.NoError(t, os.Mkdir(site, 0o755))
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	valid := func() *Config {
		cfg := &Config{
			Version:   Version,
			Output:    OutputConfig{Directory: filepath.Join(root, "out")},
			Workspace: filepath.Join(root, "ws"),
			Sources:   []Source{{Name: "site", Path: site}},
		}
		applyDefaults(cfg)
		return cfg
	}

	require.NoError(t, Validate(valid()))

	cases := map[string]func(*Config){
		"no sources":          func(c *Config) { c.Sources = nil },
		"empty name":          func(c *Config) { c.Sources[0].Name = "" },
		"nested name":         func(c *Config) { c.Sources[0].Name = "a/b" },
		"duplicate name":      func(c *Config) { c.Sources = append(c.Sources, Source{Name: "site", Path: site}) },
		"path and git":        func(c *Config) { c.Sources[0].Git = &GitSource{URL: "x"} },
		"git without url":     func(c *Config) { c.Sources[0] = Source{Name: "g", Git: &GitSource{}} },
		"neither":             func(c *Config) { c.Sources[0].Path = "" },
		"missing path":        func(c *Config) { c.Sources[0].Path = filepath.Join(root, "nope") },
		"path is file":        func(c *Config) { c.Sources[0].Path = file },
		"output in source":    func(c *Config) { c.Output.Directory = filepath.Join(site, "build") },
		"source in output":    func(c *Config) { c.Output.Directory = root },
		"nested manifest":     func(c *Config) { c.Output.Manifest = "meta/all.json" },
		"bad image size":      func(c *Config) { c.Images.WebSize = []int{100} },
		"bad debounce":        func(c *Config) { c.Watch.Debounce = "soon" },
		"bad schedule":        func(c *Config) { c.Daemon.Schedule = "hourly" },
		"s3 without bucket":   func(c *Config) { c.Publish.S3 = &S3Config{} },
		"subject without url": func(c *Config) { c.Notify.Subject = "x" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
}

func TestNormalizeClamps(t *testing.T) {
	cfg := &Config{
		Build:   BuildConfig{Concurrency: -2},
		Images:  ImagesConfig{Quality: 150},
		Sources: []Source{{Name: " site ", Git: &GitSource{URL: " u "}}},
	}
	res := Normalize(cfg)

	assert.Equal(t, 0, cfg.Build.Concurrency)
	assert.Equal(t, 100, cfg.Images.Quality)
	assert.Equal(t, "site", cfg.Sources[0].Name)
	assert.Equal(t, "u", cfg.Sources[0].Git.URL)
	assert.Len(t, res.Warnings, 2)
}

func TestInitRoundTrip(t *testing.T) {
	for _, name := range []string{"sitebuilder.yaml", "sitebuilder.toml"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.Mkdir(filepath.Join(dir, "site"), 0o755))
			path := filepath.Join(dir, name)

			require.NoError(t, Init(path, false))
			assert.True(t, errors.HasCategory(Init(path, false), errors.CategoryConfig))
			require.NoError(t, Init(path, true))

			cfg, _, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, cfg.Sources, 2)
			assert.Len(t, cfg.Parsers.File, 4)
			assert.Len(t, cfg.Parsers.Dir, 2)
			assert.Equal(t, "blog.tmpl", cfg.Parsers.Dir[1].Options["template"])
		})
	}
}
