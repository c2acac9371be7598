// Package dispatcher runs a fixed pool of workers that pull jobs from the
// queue transport and route them to the analytics engines.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/queue"
	"estate-analytics/internal/trend"
)

// TrendComputer is the market trend engine.
type TrendComputer interface {
	Compute(ctx context.Context, req trend.Request) (*domain.TrendReport, error)
}

// ReportGenerator is the comparable report engine.
type ReportGenerator interface {
	Generate(ctx context.Context, listingID int64) (*domain.ComparableReport, error)
}

// Options configures a Dispatcher.
type Options struct {
	Queue  queue.Queue
	Queues []string // defaults to domain.AllQueues

	Trends  TrendComputer
	Reports ReportGenerator

	Concurrency int           // defaults to 4
	WindowDays  int           // trend window, defaults to 30
	TaskTimeout time.Duration // defaults to 5m
	PollTimeout time.Duration // defaults to 1s

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Active    int64 `json:"active"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Dispatcher is the single boundary where task errors are caught,
// classified and recorded. Errors never reach the queue producers.
type Dispatcher struct {
	queue   queue.Queue
	queues  []string
	trends  TrendComputer
	reports ReportGenerator

	concurrency int
	windowDays  int
	taskTimeout time.Duration
	pollTimeout time.Duration

	metrics *observability.Metrics
	log     zerolog.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if len(opts.Queues) == 0 {
		opts.Queues = domain.AllQueues
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	return &Dispatcher{
		queue:       opts.Queue,
		queues:      opts.Queues,
		trends:      opts.Trends,
		reports:     opts.Reports,
		concurrency: opts.Concurrency,
		windowDays:  opts.WindowDays,
		taskTimeout: opts.TaskTimeout,
		pollTimeout: opts.PollTimeout,
		metrics:     opts.Metrics,
		log:         opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// in-flight task has finished. Tasks run on a context detached from ctx,
// so cancellation stops dequeuing without aborting work already started.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Int("concurrency", d.concurrency).Strs("queues", d.queues).Msg("dispatcher started")

	var wg sync.WaitGroup
	for i := range d.concurrency {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.worker(ctx, worker)
		}(i)
	}
	wg.Wait()

	d.log.Info().Int64("processed", d.processed.Load()).Int64("failed", d.failed.Load()).Msg("dispatcher drained")
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	log := d.log.With().Int("worker", id).Logger()
	taskCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := d.queue.Dequeue(ctx, d.queues, d.pollTimeout)
		switch {
		case err == nil:
			_ = d.Process(taskCtx, job)
		case errors.Is(err, queue.ErrEmpty):
		case errors.Is(err, queue.ErrMalformed):
			// The envelope is already off the queue; count it as a failed task.
			d.reject(err)
		case ctx.Err() != nil:
			return
		default:
			log.Error().Err(err).Msg("dequeue failed")
			// Back off so a broken broker does not spin the worker.
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pollTimeout):
			}
		}
	}
}

// Process runs a single job synchronously under the task timeout and
// records its outcome. Failed jobs are not requeued.
func (d *Dispatcher) Process(ctx context.Context, job *domain.Job) (err error) {
	taskType := "unknown"
	if job != nil && job.Type != "" {
		taskType = string(job.Type)
	}

	d.active.Add(1)
	d.metrics.TaskStarted()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s task: %v", taskType, r)
		}
		d.active.Add(-1)
		d.record(job, taskType, time.Since(start), err)
	}()

	if job == nil {
		return errors.New("nil job")
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	switch job.Type {
	case domain.JobTypeTrend:
		return d.runTrend(ctx, job)
	case domain.JobTypeReport:
		return d.runReport(ctx, job)
	default:
		return fmt.Errorf("no engine for job type %q", job.Type)
	}
}

// reject records a job that could not be decoded from the queue.
func (d *Dispatcher) reject(err error) {
	var job *domain.Job
	var malformed *queue.MalformedError
	if errors.As(err, &malformed) {
		job = &domain.Job{Queue: malformed.Queue}
	}
	d.metrics.TaskStarted()
	d.record(job, "unknown", 0, err)
}

// record updates counters, metrics and logs for one finished job.
func (d *Dispatcher) record(job *domain.Job, taskType string, elapsed time.Duration, err error) {
	d.processed.Add(1)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
		d.failed.Add(1)
	}
	d.metrics.TaskFinished(taskType, status, elapsed)

	var ev *zerolog.Event
	if err != nil {
		ev = d.log.Error().Err(err).Str("kind", Classify(err))
	} else {
		ev = d.log.Info()
	}
	if job != nil {
		ev = ev.Str("job_id", job.ID).Str("queue", job.Queue)
	}
	ev.Str("task_type", taskType).Dur("elapsed", elapsed).Msg("task finished")
}

func (d *Dispatcher) runTrend(ctx context.Context, job *domain.Job) error {
	p, err := job.TrendPayload()
	if err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	_, err = d.trends.Compute(ctx, trend.Request{City: p.City, Category: p.Category, WindowDays: d.windowDays})
	return err
}

func (d *Dispatcher) runReport(ctx context.Context, job *domain.Job) error {
	p, err := job.ReportPayload()
	if err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	_, err = d.reports.Generate(ctx, p.ListingID)
	return err
}

// ActiveTasks returns the number of tasks currently executing.
func (d *Dispatcher) ActiveTasks() int64 {
	return d.active.Load()
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Active:    d.active.Load(),
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
	}
}

// Classify maps a task error to a short kind used in logs.
func Classify(err error) string {
	var (
		connErr    *domain.ConnectionError
		notFound   *domain.NotFoundError
		persistErr *domain.PersistenceError
		trendErr   *domain.TrendComputationError
		reportErr  *domain.ReportError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, queue.ErrMalformed):
		return "malformed"
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &persistErr):
		return "persistence"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &trendErr):
		return "trend_computation"
	case errors.As(err, &reportErr):
		return "report"
	default:
		return "internal"
	}
}
