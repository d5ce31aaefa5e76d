package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Example returns the configuration written by Init.
func Example() *Config {
	return &Config{
		Version: Version,
		Output:  OutputConfig{Directory: defaultOutputDir, Manifest: "all.json"},
		Sources: []Source{
			{Name: "site", Path: "./site"},
			{Name: "handbook", Git: &GitSource{
				URL:          "https://github.com/example/handbook.git",
				Branch:       "main",
				AuthTokenEnv: "HANDBOOK_TOKEN",
			}},
		},
		Parsers: ParsersConfig{
			File: []ParserSpec{
				{Name: "markdown"},
				{Name: "markdown_file", Options: map[string]any{"extension": ".md.html"}},
				{Name: "image_png"},
				{Name: "image_jpg"},
			},
			Dir: []ParserSpec{
				{Name: "assets", Options: map[string]any{"dir": "static"}},
				{Name: "blog", Options: map[string]any{"dir": "blog", "template": "blog.tmpl"}},
			},
		},
		Images: ImagesConfig{
			WebSize:   append([]int(nil), defaultWebSize...),
			ThumbSize: append([]int(nil), defaultThumbSize...),
			Quality:   defaultImageQuality,
		},
		Build:   BuildConfig{Concurrency: 4},
		Metrics: MetricsConfig{Enabled: false, Listen: defaultMetricsListen},
		Daemon:  DaemonConfig{Schedule: defaultSchedule},
		Watch:   WatchConfig{Debounce: defaultDebounce.String()},
	}
}

// Init writes an example configuration file. The syntax follows the file
// extension.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	var (
		data []byte
		err  error
	)
	if formatFor(configPath) == FormatTOML {
		data, err = toml.Marshal(Example())
	} else {
		data, err = yaml.Marshal(Example())
	}
	if err != nil {
		return errors.InternalError("marshal example configuration").WithCause(err).Build()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.ConfigError("write configuration file").
			WithContext("path", configPath).WithCause(fmt.Errorf("write: %w", err)).Build()
	}
	return nil
}
