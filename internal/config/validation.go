package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Validate checks a normalized, defaulted configuration.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{v.validateSources, v.validateOutput, v.validateImages, v.validateServices} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func invalid(msg, field string, value any) error {
	return errors.ValidationError(msg).WithContext("field", field).WithContext("value", value).Build()
}

func (cv *configurationValidator) validateSources() error {
	if len(cv.config.Sources) == 0 {
		return invalid("at least one source is required", "sources", 0)
	}
	seen := make(map[string]bool, len(cv.config.Sources))
	for _, s := range cv.config.Sources {
		if s.Name == "" {
			return invalid("source name cannot be empty", "sources.name", s.Path)
		}
		if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
			return invalid("source name must be a single path element", "sources.name", s.Name)
		}
		if seen[s.Name] {
			return invalid("duplicate source name", "sources.name", s.Name)
		}
		seen[s.Name] = true

		switch {
		case s.Path != "" && s.Git != nil:
			return invalid("source sets both path and git", "sources."+s.Name, s.Path)
		case s.Git != nil:
			if s.Git.URL == "" {
				return invalid("git source requires a url", "sources."+s.Name+".git.url", "")
			}
		case s.Path == "":
			return invalid("source requires path or git", "sources."+s.Name, "")
		default:
			info, err := os.Stat(s.Path)
			if err != nil {
				return errors.ValidationError("source path is not accessible").
					WithContext("field", "sources."+s.Name+".path").
					WithContext("value", s.Path).WithCause(err).Build()
			}
			if !info.IsDir() {
				return invalid("source path is not a directory", "sources."+s.Name+".path", s.Path)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateOutput() error {
	out := filepath.Clean(cv.config.Output.Directory)
	if strings.ContainsAny(cv.config.Output.Manifest, `/\`) && !filepath.IsAbs(cv.config.Output.Manifest) {
		return invalid("output.manifest must be a file name or an absolute path", "output.manifest", cv.config.Output.Manifest)
	}
	roots := []string{filepath.Clean(cv.config.Workspace)}
	for _, s := range cv.config.Sources {
		if s.Path != "" {
			roots = append(roots, filepath.Clean(s.Path))
		}
	}
	for _, root := range roots {
		if within(out, root) || within(root, out) {
			return invalid("output directory overlaps a source root", "output.directory", out)
		}
	}
	return nil
}

func (cv *configurationValidator) validateImages() error {
	img := cv.config.Images
	for field, size := range map[string][]int{"images.web_size": img.WebSize, "images.thumb_size": img.ThumbSize} {
		if len(size) != 2 || size[0] <= 0 || size[1] <= 0 {
			return invalid("image size must be two positive integers", field, size)
		}
	}
	return nil
}

func (cv *configurationValidator) validateServices() error {
	if d, err := time.ParseDuration(cv.config.Watch.Debounce); err != nil || d <= 0 {
		return invalid("watch.debounce must be a positive duration", "watch.debounce", cv.config.Watch.Debounce)
	}
	if fields := strings.Fields(cv.config.Daemon.Schedule); len(fields) < 5 || len(fields) > 6 {
		return invalid("daemon.schedule must be a cron expression", "daemon.schedule", cv.config.Daemon.Schedule)
	}
	if s3 := cv.config.Publish.S3; s3 != nil && s3.Bucket == "" {
		return invalid("publish.s3.bucket is required", "publish.s3.bucket", "")
	}
	if n := cv.config.Notify; n.Subject != "" && n.NATSURL == "" {
		return invalid("notify.subject set without notify.nats_url", "notify.nats_url", "")
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
