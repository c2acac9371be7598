// Package trend computes market trend reports for a (city, category) slice
// of sold listings and classifies the price direction.
package trend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"estate-analytics/internal/cache"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/storage"
)

// Request selects the market slice to analyze. An empty or "all" Category
// covers every category.
type Request struct {
	City       string
	Category   string
	WindowDays int
}

// Options configures an Engine.
type Options struct {
	Listings storage.ListingStore
	Trends   storage.TrendStore
	History  storage.TrendHistoryStore // optional
	Cache    *cache.Cache
	CacheTTL time.Duration

	// State is the configured region state written into every trend row.
	State string

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine computes, persists and caches market trends.
type Engine struct {
	listings storage.ListingStore
	trends   storage.TrendStore
	history  storage.TrendHistoryStore
	cache    *cache.Cache
	cacheTTL time.Duration
	state    string
	metrics  *observability.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.TrendTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		listings: opts.Listings,
		trends:   opts.Trends,
		history:  opts.History,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		state:    opts.State,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "trend").Logger(),
		now:      opts.Now,
	}
}

// Compute builds the trend report for req, upserts it and writes it to the
// cache under trend:{city}:{category|all}. Any failure aborts the run and is
// returned as a *domain.TrendComputationError; nothing is retried here.
func (e *Engine) Compute(ctx context.Context, req Request) (*domain.TrendReport, error) {
	category := req.Category
	if category == "" {
		category = domain.CategoryAll
	}

	report, err := e.compute(ctx, req, category)
	if err != nil {
		return nil, &domain.TrendComputationError{City: req.City, Category: category, Err: err}
	}
	return report, nil
}

func (e *Engine) compute(ctx context.Context, req Request, category string) (*domain.TrendReport, error) {
	if req.City == "" {
		return nil, errors.New("city is required")
	}
	if req.WindowDays <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d days", req.WindowDays)
	}

	now := e.now().UTC()
	periodEnd := truncateDate(now)
	periodStart := periodEnd.AddDate(0, 0, -req.WindowDays)

	filter := storage.SoldFilter{
		State: e.state,
		City:  req.City,
		From:  periodStart,
		To:    periodEnd.AddDate(0, 0, 1), // listing dates on periodEnd are included
	}
	if category != domain.CategoryAll {
		filter.Category = category
	}

	listings, err := e.listings.FindSold(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load sold listings: %w", err)
	}
	e.metrics.AddListingsProcessed(len(listings))

	s := summarize(listings)
	weekly := WeeklyBuckets(listings)

	report := &domain.TrendReport{
		TrendKey: domain.TrendKey{
			City:        req.City,
			State:       e.state,
			Category:    category,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		TotalSales:      s.count,
		AvgPrice:        s.mean,
		MedianPrice:     s.median,
		MinPrice:        s.min,
		MaxPrice:        s.max,
		PriceStdDev:     s.stddev,
		AvgPricePerArea: s.avgPricePerArea,
		AvgDaysOnMarket: s.avgDaysOnMarket,
		Trend:           Classify(weekly),
		Weekly:          weekly,
		CalculatedAt:    now,
	}

	if err := e.trends.Upsert(ctx, report); err != nil {
		return nil, &domain.PersistenceError{Key: report.TrendKey, Err: err}
	}

	if e.history != nil {
		if err := e.history.Append(ctx, report); err != nil {
			e.log.Warn().Err(err).Str("city", req.City).Str("category", category).Msg("trend history append failed")
		}
	}

	if e.cache != nil {
		key := cache.TrendKey(req.City, category)
		if err := e.cache.SetObject(ctx, key, report, e.cacheTTL); err != nil {
			return nil, fmt.Errorf("cache %s: %w", key, err)
		}
	}

	e.metrics.RecordTrendCalculated()
	e.log.Info().
		Str("city", req.City).
		Str("category", category).
		Int("total_sales", report.TotalSales).
		Str("trend", string(report.Trend)).
		Msg("market trend calculated")

	return report, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
