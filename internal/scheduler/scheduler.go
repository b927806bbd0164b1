package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is triggered while another one is still going
var ErrRunInProgress = errors.New("a mirror run is already in progress")

// RunFunc performs one mirror run
type RunFunc func(ctx context.Context) error

// Runner serializes runs: at most one executes at a time, overlapping triggers are skipped
type Runner struct {
	mu  sync.Mutex
	run RunFunc
}

// NewRunner wraps fn
func NewRunner(fn RunFunc) *Runner {
	return &Runner{run: fn}
}

// Trigger executes a run unless one is already in progress
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.mu.TryLock() {
		logrus.Warn("Previous run still in progress, skipping this trigger")
		return ErrRunInProgress
	}
	defer r.mu.Unlock()

	return r.run(ctx)
}

// Scheduler triggers the runner on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner *Runner
}

// New validates spec and prepares a scheduler for runner
func New(spec string, runner *Runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(logrus.StandardLogger())),
		cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger())),
	))

	return &Scheduler{cron: c, spec: spec, runner: runner}, nil
}

// Run performs one run immediately, then keeps triggering on schedule until ctx is done.
// It returns after the run in progress, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduled mirror runs with %q", s.spec)

	s.trigger(ctx)
	logrus.Infof("Next run at %s", s.cron.Entry(id).Next.Format("2006-01-02 15:04:05"))

	<-ctx.Done()
	logrus.Info("Stopping scheduler...")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.runner.Trigger(ctx)
	if err != nil && !errors.Is(err, ErrRunInProgress) {
		logrus.Errorf("Mirror run failed: %v", err)
	}
}
