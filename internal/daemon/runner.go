package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context) (*build.Result, error)

// Status is a snapshot of the runner.
type Status struct {
	Running   bool          `json:"running"`
	Builds    int           `json:"builds"`
	Failures  int           `json:"failures"`
	LastBuild *BuildSummary `json:"last_build,omitempty"`
}

// BuildSummary describes the most recent finished build.
type BuildSummary struct {
	ID         string         `json:"id"`
	Reason     string         `json:"reason"`
	Status     history.Status `json:"status"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// Runner executes builds one at a time.
type Runner struct {
	build   BuildFunc
	logger  *slog.Logger
	trigger chan string

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a runner for fn.
func NewRunner(fn BuildFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		build:   fn,
		logger:  logger,
		trigger: make(chan string, 1),
	}
}

// Trigger requests a build. It never blocks; a request made while another
// is already pending is dropped.
func (r *Runner) Trigger(reason string) {
	select {
	case r.trigger <- reason:
		r.logger.Debug("Build requested", slog.String("reason", reason))
	default:
		r.logger.Debug("Build already pending", slog.String("reason", reason))
	}
}

// Run executes requested builds until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.trigger:
			r.runOnce(ctx, reason)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, reason string) {
	r.mu.Lock()
	r.status.Running = true
	r.mu.Unlock()

	res, err := r.build(ctx)

	summary := &BuildSummary{Reason: reason, FinishedAt: time.Now().UTC(), Status: history.StatusSuccess}
	if res != nil {
		summary.ID = res.ID
		summary.Status = res.Status
		summary.DurationMS = res.Duration.Milliseconds()
	}
	if err != nil {
		summary.Error = err.Error()
		if res == nil {
			summary.Status = history.StatusFailed
		}
		r.logger.Error("Triggered build failed", slog.String("reason", reason), logfields.Error(err))
	}

	r.mu.Lock()
	r.status.Running = false
	r.status.Builds++
	if err != nil {
		r.status.Failures++
	}
	r.status.LastBuild = summary
	r.mu.Unlock()
}

// Status returns a snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	if s.LastBuild != nil {
		last := *s.LastBuild
		s.LastBuild = &last
	}
	return s
}
