package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Options selects the trigger sources of a Daemon. Empty fields disable the
// corresponding feature.
type Options struct {
	Build BuildFunc

	// Schedule is a cron expression for periodic rebuilds.
	Schedule string

	// WatchRoots are watched for changes; WatchIgnore are excluded.
	WatchRoots  []string
	WatchIgnore []string
	Debounce    time.Duration

	// MetricsAddr enables the HTTP server serving Registry.
	MetricsAddr string
	Registry    *prom.Registry

	// InitialBuild runs one build immediately on start.
	InitialBuild bool

	Logger *slog.Logger
}

// Daemon wires a Runner to its trigger sources.
type Daemon struct {
	opts      Options
	runner    *Runner
	scheduler *Scheduler
	watcher   *Watcher
	server    *Server
	logger    *slog.Logger
}

// New validates opts and prepares every enabled component.
func New(opts Options) (*Daemon, error) {
	if opts.Build == nil {
		return nil, errors.ValidationError("daemon requires a build function").Build()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{opts: opts, logger: logger, runner: NewRunner(opts.Build, logger)}

	if opts.Schedule != "" {
		s, err := NewScheduler(opts.Schedule, d.runner.Trigger, logger)
		if err != nil {
			return nil, errors.ConfigError("invalid daemon schedule").
				WithContext("schedule", opts.Schedule).WithCause(err).Build()
		}
		d.scheduler = s
	}
	if len(opts.WatchRoots) > 0 {
		debounce := opts.Debounce
		if debounce <= 0 {
			debounce = 500 * time.Millisecond
		}
		w, err := NewWatcher(opts.WatchRoots, opts.WatchIgnore, debounce, d.runner.Trigger, logger)
		if err != nil {
			d.stopScheduler()
			return nil, errors.FileSystemError("start source watcher").WithCause(err).Build()
		}
		d.watcher = w
	}
	if opts.MetricsAddr != "" {
		d.server = NewServer(opts.MetricsAddr, opts.Registry, d.runner, logger)
	}
	return d, nil
}

// Runner exposes the build runner.
func (d *Daemon) Runner() *Runner { return d.runner }

// Run blocks until ctx is done, then stops every component.
func (d *Daemon) Run(ctx context.Context) error {
	if d.server != nil {
		if err := d.server.Start(); err != nil {
			d.stopScheduler()
			if d.watcher != nil {
				d.watcher.Close()
			}
			return errors.RuntimeError("start metrics server").
				WithContext("addr", d.opts.MetricsAddr).WithCause(err).Build()
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runner.Run(ctx)
	}()
	if d.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.watcher.Run(ctx)
		}()
	}
	if d.scheduler != nil {
		d.scheduler.Start()
	}
	if d.opts.InitialBuild {
		d.runner.Trigger("startup")
	}

	<-ctx.Done()
	d.logger.Info("Shutting down")
	d.stopScheduler()
	if d.server != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(sctx); err != nil {
			d.logger.Warn("Metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}
	wg.Wait()
	return nil
}

func (d *Daemon) stopScheduler() {
	if d.scheduler == nil {
		return
	}
	if err := d.scheduler.Stop(); err != nil {
		d.logger.Warn("Scheduler shutdown failed", slog.String("error", err.Error()))
	}
}
