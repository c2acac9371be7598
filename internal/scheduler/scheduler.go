// Package scheduler runs periodic maintenance jobs (the market sweep and
// cache hygiene) from a single polling loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"estate-analytics/internal/observability"
)

// Job represents a scheduled job.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type entry struct {
	job      Job
	spec     string
	schedule cron.Schedule
	next     time.Time
	lastRun  time.Time
	lastErr  error
}

// Options configures a Scheduler.
type Options struct {
	PollInterval time.Duration // defaults to 1m
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Scheduler manages background jobs. Due jobs run one after another on
// the goroutine calling Run; a slow job delays the next one.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry

	poll    time.Duration
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a new scheduler.
func New(opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		poll:    opts.PollInterval,
		metrics: opts.Metrics,
		log:     opts.Logger.With().Str("component", "scheduler").Logger(),
		now:     opts.Now,
	}
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "0 2 * * *"    - 02:00 every day
//   - "@hourly"      - every hour
//   - "*/15 * * * *" - every 15 minutes
func (s *Scheduler) AddJob(spec string, job Job) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q for job %s: %w", spec, job.Name(), err)
	}

	e := &entry{
		job:      job,
		spec:     spec,
		schedule: schedule,
		next:     schedule.Next(s.now()),
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", spec).
		Str("job", job.Name()).
		Time("next_run", e.next).
		Msg("job registered")
	return nil
}

// Run polls for due jobs until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("poll_interval", s.poll).Msg("scheduler started")

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunPending(ctx)
		}
	}
}

// RunPending runs every job whose next run time has passed, in
// registration order, and returns how many ran. Missed runs collapse
// into a single run.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !now.Before(e.next) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	ran := 0
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		err := s.execute(ctx, e)

		s.mu.Lock()
		e.lastRun = now
		e.lastErr = err
		e.next = e.schedule.Next(now)
		s.mu.Unlock()
		ran++
	}
	return ran
}

// RunNow executes a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *entry
	for _, e := range s.entries {
		if e.job.Name() == name {
			found = e
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("job %q not registered", name)
	}

	s.log.Info().Str("job", name).Msg("running job immediately")
	err := s.execute(ctx, found)

	s.mu.Lock()
	found.lastRun = s.now()
	found.lastErr = err
	s.mu.Unlock()
	return err
}

// Status returns a snapshot of every registered job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := JobStatus{
			Name:     e.job.Name(),
			Schedule: e.spec,
			NextRun:  e.next,
			LastRun:  e.lastRun,
		}
		if e.lastErr != nil {
			st.LastError = e.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	name := e.job.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", name, r)
		}
		s.metrics.RecordSchedulerRun(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job completed")
	}()

	s.log.Debug().Str("job", name).Msg("running job")
	return e.job.Run(ctx)
}
