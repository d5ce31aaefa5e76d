// Package config loads the sitebuilder configuration file.
//
// Files are YAML or TOML, chosen by extension. `.env` and `.env.local` in the
// working directory are loaded first and `${VAR}` references are expanded
// before parsing. Loading then runs normalization, defaults and validation,
// in that order. Relative paths are resolved against the directory holding
// the configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Version is the only supported value of the version field.
const Version = "1.0"

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "sitebuilder.yaml"

// Config is the root configuration document.
type Config struct {
	Version   string        `yaml:"version" toml:"version"`
	Output    OutputConfig  `yaml:"output" toml:"output"`
	Workspace string        `yaml:"workspace,omitempty" toml:"workspace,omitempty"`
	Sources   []Source      `yaml:"sources" toml:"sources"`
	Parsers   ParsersConfig `yaml:"parsers" toml:"parsers"`
	Images    ImagesConfig  `yaml:"images,omitempty" toml:"images,omitempty"`
	Build     BuildConfig   `yaml:"build,omitempty" toml:"build,omitempty"`
	History   HistoryConfig `yaml:"history,omitempty" toml:"history,omitempty"`
	Metrics   MetricsConfig `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
	Notify    NotifyConfig  `yaml:"notify,omitempty" toml:"notify,omitempty"`
	Publish   PublishConfig `yaml:"publish,omitempty" toml:"publish,omitempty"`
	Daemon    DaemonConfig  `yaml:"daemon,omitempty" toml:"daemon,omitempty"`
	Watch     WatchConfig   `yaml:"watch,omitempty" toml:"watch,omitempty"`
}

// OutputConfig locates the output tree and its manifest.
type OutputConfig struct {
	Directory string `yaml:"directory" toml:"directory"`
	Manifest  string `yaml:"manifest,omitempty" toml:"manifest,omitempty"`
}

// ManifestPath returns the manifest location inside the output directory.
func (o OutputConfig) ManifestPath() string {
	if filepath.IsAbs(o.Manifest) {
		return o.Manifest
	}
	return filepath.Join(o.Directory, o.Manifest)
}

// Source is one source root: a local directory or a git repository.
type Source struct {
	Name string     `yaml:"name" toml:"name"`
	Path string     `yaml:"path,omitempty" toml:"path,omitempty"`
	Git  *GitSource `yaml:"git,omitempty" toml:"git,omitempty"`
}

// GitSource describes a repository mirrored into the workspace.
type GitSource struct {
	URL          string `yaml:"url" toml:"url"`
	Branch       string `yaml:"branch,omitempty" toml:"branch,omitempty"`
	AuthTokenEnv string `yaml:"auth_token_env,omitempty" toml:"auth_token_env,omitempty"`
}

// Token reads the access token from the configured environment variable.
func (g *GitSource) Token() string {
	if g == nil || g.AuthTokenEnv == "" {
		return ""
	}
	return os.Getenv(g.AuthTokenEnv)
}

// ParsersConfig lists parser registrations in declaration order.
type ParsersConfig struct {
	File []ParserSpec `yaml:"file,omitempty" toml:"file,omitempty"`
	Dir  []ParserSpec `yaml:"dir,omitempty" toml:"dir,omitempty"`
}

// ParserSpec names a built-in parser and its options.
type ParserSpec struct {
	Name    string         `yaml:"name" toml:"name"`
	Options map[string]any `yaml:"options,omitempty" toml:"options,omitempty"`
}

// ImagesConfig holds the image rendering tunables.
type ImagesConfig struct {
	WebSize   []int `yaml:"web_size,omitempty" toml:"web_size,omitempty"`
	ThumbSize []int `yaml:"thumb_size,omitempty" toml:"thumb_size,omitempty"`
	Quality   int   `yaml:"quality,omitempty" toml:"quality,omitempty"`
}

// BuildConfig holds walker tunables.
type BuildConfig struct {
	Concurrency        int  `yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
	SkipParserFailures bool `yaml:"skip_parser_failures,omitempty" toml:"skip_parser_failures,omitempty"`
}

// HistoryConfig locates the build ledger. A nil Path selects the default
// location; an explicit empty string disables the ledger.
type HistoryConfig struct {
	Path *string `yaml:"path,omitempty" toml:"path,omitempty"`
	Keep int     `yaml:"keep,omitempty" toml:"keep,omitempty"`
}

// Enabled reports whether a ledger should be opened.
func (h HistoryConfig) Enabled() bool { return h.Path != nil && *h.Path != "" }

// DBPath returns the ledger path, or "" when disabled.
func (h HistoryConfig) DBPath() string {
	if h.Path == nil {
		return ""
	}
	return *h.Path
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty" toml:"listen,omitempty"`
}

// NotifyConfig controls build notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" toml:"subject,omitempty"`
}

// PublishConfig controls uploads of the output tree.
type PublishConfig struct {
	S3 *S3Config `yaml:"s3,omitempty" toml:"s3,omitempty"`
}

// S3Config names the target bucket. Static credentials are read from the
// AccessKeyEnv and SecretKeyEnv variables when both are set; otherwise the
// default AWS credential chain applies.
type S3Config struct {
	Bucket       string `yaml:"bucket" toml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty" toml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	AccessKeyEnv string `yaml:"access_key_env,omitempty" toml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty" toml:"secret_key_env,omitempty"`
}

// DaemonConfig controls scheduled rebuilds.
type DaemonConfig struct {
	Schedule string `yaml:"schedule,omitempty" toml:"schedule,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// DebounceDuration parses Debounce; validation guarantees it is well formed.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return defaultDebounce
	}
	return d
}

// Load reads, normalizes, defaults and validates a configuration file.
func Load(configPath string) (*Config, *NormalizationResult, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).WithCause(err).Build()
		}
		return nil, nil, errors.ConfigError("read configuration file").
			WithContext("path", configPath).WithCause(err).Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))), formatFor(configPath))
	if err != nil {
		return nil, nil, errors.ConfigError("parse configuration file").
			WithContext("path", configPath).WithCause(err).Build()
	}

	base, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, nil, errors.ConfigError("resolve configuration directory").
			WithContext("path", configPath).WithCause(err).Build()
	}

	res, err := Finalize(cfg, base)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

// Finalize runs normalization, defaults and validation on a parsed config.
func Finalize(cfg *Config, baseDir string) (*NormalizationResult, error) {
	if cfg.Version != Version {
		return nil, errors.ValidationError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", Version).Build()
	}
	res := Normalize(cfg)
	applyDefaults(cfg)
	resolvePaths(cfg, baseDir)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return res, nil
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes raw configuration bytes without further processing.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	}
	return &cfg, nil
}

func resolvePaths(cfg *Config, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	cfg.Output.Directory = abs(cfg.Output.Directory)
	cfg.Workspace = abs(cfg.Workspace)
	for i := range cfg.Sources {
		cfg.Sources[i].Path = abs(cfg.Sources[i].Path)
	}
	if cfg.History.Enabled() && *cfg.History.Path != ":memory:" {
		p := abs(*cfg.History.Path)
		cfg.History.Path = &p
	}
}
