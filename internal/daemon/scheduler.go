package daemon

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Scheduler wraps a gocron scheduler holding the periodic rebuild job.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	logger    *slog.Logger
}

// NewScheduler registers a cron job calling trigger. Five-field expressions
// have minute resolution, six-field expressions start with seconds.
func NewScheduler(schedule string, trigger func(reason string), logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	withSeconds := len(strings.Fields(schedule)) == 6
	job, err := s.NewJob(
		gocron.CronJob(schedule, withSeconds),
		gocron.NewTask(func() { trigger("schedule") }),
		gocron.WithName("scheduled-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled build job: %w", err)
	}
	return &Scheduler{scheduler: s, job: job, logger: logger.With(logfields.Schedule(schedule))}, nil
}

// Start begins firing the job.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
	if next, err := s.job.NextRun(); err == nil {
		s.logger.Info("Next scheduled build", slog.Time("at", next))
	}
}

// Stop shuts the scheduler down, waiting for a running task to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
