package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
)

// RetryPolicy bounds connection attempts. The delay before attempt n+1 is
// BaseDelay * 2^(n-1), without jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy allows 5 attempts waiting 1s, 2s, 4s and 8s in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseDelay << uint(min(p.MaxAttempts, 16))
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// Retry runs op until it succeeds or the policy is exhausted. Exhaustion
// yields a *domain.ConnectionError wrapping the last failure.
func (p RetryPolicy) Retry(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	p = p.normalized()
	start := time.Now()
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++
		return op(ctx)
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
	})
	if err != nil {
		return &domain.ConnectionError{Attempts: attempts, Elapsed: time.Since(start), Err: err}
	}
	return nil
}

// acquirer is the subset of pgxpool.Pool used by the Connector.
type acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	Retry        RetryPolicy
	QueryTimeout time.Duration
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

// Connector hands out pooled connections with bounded exponential-backoff
// retry and applies the query timeout to every statement run through it.
type Connector struct {
	pool         acquirer
	retry        RetryPolicy
	queryTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

// NewConnector creates a Connector over pool.
func NewConnector(pool *Pool, opts ConnectorOptions) *Connector {
	return newConnector(pool, opts)
}

func newConnector(pool acquirer, opts ConnectorOptions) *Connector {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	return &Connector{
		pool:         pool,
		retry:        opts.Retry.normalized(),
		queryTimeout: opts.QueryTimeout,
		metrics:      opts.Metrics,
		log:          opts.Logger.With().Str("component", "connector").Logger(),
	}
}

// Acquire returns a usable connection or a *domain.ConnectionError once the
// retry budget is spent. The caller must Release the connection.
func (c *Connector) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	var conn *pgxpool.Conn

	err := c.retry.Retry(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()

		var err error
		conn, err = c.pool.Acquire(attemptCtx)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		c.metrics.RecordConnectRetry()
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("acquire connection failed")
	})
	if err != nil {
		c.metrics.RecordConnectFailure()
		c.log.Error().Err(err).Msg("connection retry budget exhausted")
		return nil, err
	}

	c.metrics.ConnAcquired()
	return conn, nil
}

// Release returns conn to the pool.
func (c *Connector) Release(conn *pgxpool.Conn) {
	if conn == nil {
		return
	}
	conn.Release()
	c.metrics.ConnReleased()
}

// WithTimeout bounds ctx by the configured query timeout.
func (c *Connector) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.queryTimeout)
}

// WithConn acquires a connection, runs fn under the query timeout and
// releases the connection on every path.
func (c *Connector) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	conn, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release(conn)

	qctx, cancel := c.WithTimeout(ctx)
	defer cancel()

	return fn(qctx, conn)
}

// ConnectPool opens a pool, retrying the initial connect with policy.
func ConnectPool(ctx context.Context, dsn string, policy RetryPolicy, log zerolog.Logger) (*Pool, error) {
	var pool *Pool
	err := policy.Retry(ctx, func(ctx context.Context) error {
		var err error
		pool, err = NewPool(ctx, dsn)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("postgres not reachable")
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return pool, nil
}
