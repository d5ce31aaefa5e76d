// Package transforms wires the built-in parsers into a registry from their
// configured names and options.
package transforms

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/blog"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/images"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/markdown"
)

// Spec names one parser registration.
type Spec struct {
	Name    string
	Options map[string]any
}

// Settings carries the tunables shared by several parsers.
type Settings struct {
	Images images.Settings
	Logger *slog.Logger
}

type options struct {
	Extension string `yaml:"extension"`
	Unsafe    bool   `yaml:"unsafe"`
	Dir       string `yaml:"dir"`
	Template  string `yaml:"template"`
	Quality   int    `yaml:"quality"`
}

// FileParsers lists the names accepted in file registrations.
var FileParsers = []string{"markdown", "markdown_file", "image_png", "image_jpg"}

// DirParsers lists the names accepted in directory registrations.
var DirParsers = []string{"blog", "assets"}

// Register builds each spec and registers it in declaration order, so later
// specs take priority over earlier ones.
func Register(reg *plugin.Registry, files, dirs []Spec, s Settings) error {
	for _, spec := range files {
		p, err := NewFileParser(spec, s)
		if err != nil {
			return err
		}
		reg.RegisterFileParser(p)
	}
	for _, spec := range dirs {
		p, err := NewDirParser(spec, s)
		if err != nil {
			return err
		}
		reg.RegisterDirParser(p)
	}
	return nil
}

// NewFileParser constructs a built-in file parser.
func NewFileParser(spec Spec, s Settings) (plugin.FileParser, error) {
	opts, err := decode(spec)
	if err != nil {
		return nil, err
	}
	imgSettings := s.Images
	if opts.Quality > 0 {
		imgSettings.Quality = opts.Quality
	}
	switch spec.Name {
	case "markdown":
		return markdown.NewParser(markdown.NewRenderer(opts.Unsafe), opts.Extension), nil
	case "markdown_file":
		return markdown.NewFileParser(markdown.NewRenderer(opts.Unsafe), opts.Extension), nil
	case "image_png":
		return images.NewPNG(imgSettings).WithLogger(s.Logger), nil
	case "image_jpg":
		return images.NewJPG(imgSettings).WithLogger(s.Logger), nil
	default:
		return nil, fmt.Errorf("unknown file parser %q (known: %v)", spec.Name, FileParsers)
	}
}

// NewDirParser constructs a built-in directory parser.
func NewDirParser(spec Spec, _ Settings) (plugin.DirParser, error) {
	opts, err := decode(spec)
	if err != nil {
		return nil, err
	}
	switch spec.Name {
	case "blog":
		return blog.New(markdown.NewRenderer(opts.Unsafe), opts.Dir, opts.Template), nil
	case "assets":
		return assets.New(opts.Dir), nil
	default:
		return nil, fmt.Errorf("unknown directory parser %q (known: %v)", spec.Name, DirParsers)
	}
}

// decode maps free-form options onto the typed option set via YAML.
func decode(spec Spec) (options, error) {
	var opts options
	if len(spec.Options) == 0 {
		return opts, nil
	}
	raw, err := yaml.Marshal(spec.Options)
	if err != nil {
		return opts, fmt.Errorf("parser %s options: %w", spec.Name, err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("parser %s options: %w", spec.Name, err)
	}
	return opts, nil
}
