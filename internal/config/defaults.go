package config

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

const (
	defaultOutputDir     = "./build"
	defaultWorkspace     = "./.sitebuilder-workspace"
	defaultMetricsListen = ":9464"
	defaultSchedule      = "*/15 * * * *"
	defaultDebounce      = 500 * time.Millisecond
	defaultImageQuality  = 80
	defaultHistoryKeep   = 500
	stateDirName         = ".sitebuilder"
)

var (
	defaultWebSize   = []int{1280, 720}
	defaultThumbSize = []int{384, 216}
)

// DefaultApplier fills in defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

type outputDefaults struct{}

func (outputDefaults) Domain() string { return "output" }
func (outputDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir
	}
	if cfg.Output.Manifest == "" {
		cfg.Output.Manifest = manifest.DefaultFileName
	}
	if cfg.Workspace == "" {
		cfg.Workspace = defaultWorkspace
	}
}

type imageDefaults struct{}

func (imageDefaults) Domain() string { return "images" }
func (imageDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Images.WebSize) == 0 {
		cfg.Images.WebSize = append([]int(nil), defaultWebSize...)
	}
	if len(cfg.Images.ThumbSize) == 0 {
		cfg.Images.ThumbSize = append([]int(nil), defaultThumbSize...)
	}
	if cfg.Images.Quality == 0 {
		cfg.Images.Quality = defaultImageQuality
	}
}

type historyDefaults struct{}

func (historyDefaults) Domain() string { return "history" }
func (historyDefaults) ApplyDefaults(cfg *Config) {
	if cfg.History.Path == nil {
		p := filepath.Join(cfg.Output.Directory, stateDirName, "history.db")
		cfg.History.Path = &p
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = defaultHistoryKeep
	}
}

type serviceDefaults struct{}

func (serviceDefaults) Domain() string { return "services" }
func (serviceDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaultMetricsListen
	}
	if cfg.Daemon.Schedule == "" {
		cfg.Daemon.Schedule = defaultSchedule
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultDebounce.String()
	}
}

// appliers run in order; history depends on the output directory.
var appliers = []DefaultApplier{outputDefaults{}, imageDefaults{}, historyDefaults{}, serviceDefaults{}}

func applyDefaults(cfg *Config) {
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}
