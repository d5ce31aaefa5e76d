package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures coercions made before defaults are applied.
type NormalizationResult struct{ Warnings []string }

func (r *NormalizationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Normalize trims names, lower-cases parser names and clamps bounds.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	c.Version = strings.TrimSpace(c.Version)

	for i := range c.Sources {
		s := &c.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Path = strings.TrimSpace(s.Path)
		if s.Git != nil {
			s.Git.URL = strings.TrimSpace(s.Git.URL)
			s.Git.Branch = strings.TrimSpace(s.Git.Branch)
		}
	}
	normalizeSpecs("parsers.file", c.Parsers.File, res)
	normalizeSpecs("parsers.dir", c.Parsers.Dir, res)

	if c.Build.Concurrency < 0 {
		res.warn("build.concurrency: %d coerced to 0", c.Build.Concurrency)
		c.Build.Concurrency = 0
	}
	if q := c.Images.Quality; q < 0 || q > 100 {
		clamped := min(max(q, 1), 100)
		res.warn("images.quality: %d coerced to %d", q, clamped)
		c.Images.Quality = clamped
	}
	if c.History.Keep < 0 {
		res.warn("history.keep: %d coerced to 0", c.History.Keep)
		c.History.Keep = 0
	}
	c.Daemon.Schedule = strings.TrimSpace(c.Daemon.Schedule)
	c.Watch.Debounce = strings.TrimSpace(c.Watch.Debounce)
	return res
}

func normalizeSpecs(field string, specs []ParserSpec, res *NormalizationResult) {
	for i := range specs {
		name := strings.ToLower(strings.TrimSpace(specs[i].Name))
		if name != specs[i].Name {
			res.warn("%s[%d].name: %q normalized to %q", field, i, specs[i].Name, name)
			specs[i].Name = name
		}
	}
}
