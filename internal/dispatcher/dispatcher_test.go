package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-analytics/internal/comparable"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/queue"
	"estate-analytics/internal/storage/memory"
	"estate-analytics/internal/trend"
)

// fakeTrends records calls and delegates to fn.
type fakeTrends struct {
	fn func(ctx context.Context, req trend.Request) error
}

func (f *fakeTrends) Compute(ctx context.Context, req trend.Request) (*domain.TrendReport, error) {
	if err := f.fn(ctx, req); err != nil {
		return nil, err
	}
	return &domain.TrendReport{}, nil
}

type fakeReports struct {
	fn func(ctx context.Context, id int64) error
}

func (f *fakeReports) Generate(ctx context.Context, id int64) (*domain.ComparableReport, error) {
	if err := f.fn(ctx, id); err != nil {
		return nil, err
	}
	return &domain.ComparableReport{ListingID: id}, nil
}

func newTestDispatcher(q queue.Queue, trends TrendComputer, reports ReportGenerator, metrics *observability.Metrics, concurrency int) *Dispatcher {
	return New(Options{
		Queue:       q,
		Trends:      trends,
		Reports:     reports,
		Concurrency: concurrency,
		WindowDays:  30,
		TaskTimeout: 5 * time.Second,
		PollTimeout: 20 * time.Millisecond,
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
	})
}

func mustTrendJob(t *testing.T, city, category string) *domain.Job {
	t.Helper()
	job, err := domain.NewTrendJob(city, category)
	require.NoError(t, err)
	return job
}

func TestProcess_RoutesByJobType(t *testing.T) {
	var gotReq trend.Request
	var gotID int64
	trends := &fakeTrends{fn: func(_ context.Context, req trend.Request) error { gotReq = req; return nil }}
	reports := &fakeReports{fn: func(_ context.Context, id int64) error { gotID = id; return nil }}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	d := newTestDispatcher(queue.NewMemoryQueue(), trends, reports, metrics, 1)

	require.NoError(t, d.Process(context.Background(), mustTrendJob(t, "Austin", "land")))
	assert.Equal(t, trend.Request{City: "Austin", Category: "land", WindowDays: 30}, gotReq)

	reportJob, err := domain.NewReportJob(77)
	require.NoError(t, err)
	reportJob.Queue = domain.QueueValuations
	require.NoError(t, d.Process(context.Background(), reportJob))
	assert.Equal(t, int64(77), gotID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("trend", observability.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("report", observability.StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveTasks))
	assert.Equal(t, Stats{Processed: 2}, d.Stats())
}

func TestProcess_RecordsFailures(t *testing.T) {
	boom := &domain.TrendComputationError{City: "Austin", Category: "all", Err: errors.New("boom")}
	trends := &fakeTrends{fn: func(context.Context, trend.Request) error { return boom }}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	q := queue.NewMemoryQueue()
	d := newTestDispatcher(q, trends, nil, metrics, 1)

	err := d.Process(context.Background(), mustTrendJob(t, "Austin", ""))
	assert.ErrorIs(t, err, boom)

	bad := &domain.Job{ID: "x", Type: "valuation", Queue: domain.QueueValuations, Payload: []byte(`{}`)}
	assert.Error(t, d.Process(context.Background(), bad))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("trend", observability.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("valuation", observability.StatusError)))
	assert.Equal(t, int64(2), d.Stats().Failed)

	// Failed jobs are never requeued.
	n, err := q.Len(context.Background(), domain.QueueAnalytics)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcess_RecoversPanics(t *testing.T) {
	trends := &fakeTrends{fn: func(context.Context, trend.Request) error { panic("nil map") }}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	d := newTestDispatcher(queue.NewMemoryQueue(), trends, nil, metrics, 1)

	err := d.Process(context.Background(), mustTrendJob(t, "Austin", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, int64(0), d.ActiveTasks())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("trend", observability.StatusError)))
}

func TestProcess_AppliesTaskTimeout(t *testing.T) {
	trends := &fakeTrends{fn: func(ctx context.Context, _ trend.Request) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d := New(Options{
		Queue:       queue.NewMemoryQueue(),
		Trends:      trends,
		TaskTimeout: 20 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})

	err := d.Process(context.Background(), mustTrendJob(t, "Austin", ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", Classify(err))
}

func TestRun_BoundedConcurrency(t *testing.T) {
	const concurrency, jobs = 3, 9

	var current, peak atomic.Int64
	var done sync.WaitGroup
	done.Add(jobs)
	trends := &fakeTrends{fn: func(context.Context, trend.Request) error {
		defer done.Done()
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return nil
	}}

	q := queue.NewMemoryQueue()
	for i := range jobs {
		require.NoError(t, q.Enqueue(context.Background(), mustTrendJob(t, fmt.Sprintf("City%d", i), "")))
	}

	d := newTestDispatcher(q, trends, nil, nil, concurrency)
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(runDone)
	}()

	done.Wait()
	cancel()
	<-runDone

	assert.LessOrEqual(t, peak.Load(), int64(concurrency))
	assert.Equal(t, int64(jobs), d.Stats().Processed)
	assert.Zero(t, d.ActiveTasks())
}

func TestRun_GracefulDrain(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var taskErr error
	trends := &fakeTrends{fn: func(ctx context.Context, _ trend.Request) error {
		close(started)
		<-release
		taskErr = ctx.Err()
		return nil
	}}

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(context.Background(), mustTrendJob(t, "Austin", "")))

	d := newTestDispatcher(q, trends, nil, nil, 2)
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(runDone)
	}()

	<-started
	cancel()

	select {
	case <-runDone:
		t.Fatal("Run returned while a task was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-runDone
	assert.NoError(t, taskErr, "in-flight task context must survive shutdown")
	assert.Equal(t, Stats{Processed: 1}, d.Stats())
}

func TestRun_RecordsMalformedEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	q := queue.NewRedisQueue(client, time.Second, metrics)

	_, err := mr.Push("queue:analytics", `{"job_type":"trend","queue":"analytics","payload":`)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), mustTrendJob(t, "Austin", "")))

	var computed atomic.Int64
	trends := &fakeTrends{fn: func(context.Context, trend.Request) error {
		computed.Add(1)
		return nil
	}}
	d := newTestDispatcher(q, trends, nil, metrics, 1)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(runDone)
	}()
	require.Eventually(t, func() bool { return d.Stats().Processed == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-runDone

	assert.Equal(t, Stats{Processed: 2, Failed: 1}, d.Stats())
	assert.Equal(t, int64(1), computed.Load(), "worker keeps consuming after a bad envelope")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("unknown", observability.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues("trend", observability.StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveTasks))

	n, err := q.Len(context.Background(), domain.QueueAnalytics)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_DistinctTrendKeysAllPersisted(t *testing.T) {
	listings := memory.NewListingStore()
	trends := memory.NewTrendStore()
	now := time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)

	cities := []string{"Austin", "Houston", "Dallas", "San Antonio", "Fort Worth"}
	categories := []string{domain.CategoryResidential, domain.CategoryCommercial}
	for i, city := range cities {
		for _, category := range categories {
			require.NoError(t, listings.Insert(context.Background(), &domain.Listing{
				City:        city,
				State:       "TX",
				Category:    category,
				Price:       float64(200000 + i*10000),
				ListingDate: now.AddDate(0, 0, -5),
				UpdatedAt:   now,
				Status:      domain.ListingStatusSold,
			}))
		}
	}

	engine := trend.New(trend.Options{
		Listings: listings,
		Trends:   trends,
		State:    "TX",
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return now },
	})

	q := queue.NewMemoryQueue()
	for _, city := range cities {
		for _, category := range categories {
			require.NoError(t, q.Enqueue(context.Background(), mustTrendJob(t, city, category)))
		}
	}

	d := newTestDispatcher(q, engine, comparable.New(comparable.Options{Listings: listings, Logger: zerolog.Nop()}), nil, 4)
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(runDone)
	}()

	require.Eventually(t, func() bool {
		return d.Stats().Processed == int64(len(cities)*len(categories))
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-runDone

	assert.Zero(t, d.Stats().Failed)
	assert.Equal(t, len(cities)*len(categories), trends.Len())
	for _, city := range cities {
		rows, err := trends.ListByCity(context.Background(), city)
		require.NoError(t, err)
		assert.Len(t, rows, 2, city)
		for _, r := range rows {
			assert.Equal(t, 1, r.TotalSales)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&domain.ConnectionError{Attempts: 5, Err: errors.New("refused")}, "connection"},
		{&domain.TrendComputationError{Err: &domain.ConnectionError{Err: errors.New("refused")}}, "connection"},
		{&domain.NotFoundError{Entity: "listing", ID: "1"}, "not_found"},
		{&domain.TrendComputationError{Err: &domain.PersistenceError{Err: errors.New("x")}}, "persistence"},
		{&domain.TrendComputationError{Err: errors.New("x")}, "trend_computation"},
		{&domain.ReportError{ListingID: 1, Err: errors.New("x")}, "report"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "timeout"},
		{&queue.MalformedError{Queue: "analytics", Err: errors.New("eof")}, "malformed"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}
