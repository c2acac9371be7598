// Package comparable builds comparable-property reports for a single listing.
package comparable

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"estate-analytics/internal/cache"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/storage"
)

// Selection and positioning bands.
const (
	// MaxComparables caps the comparables returned per report.
	MaxComparables = 10

	similarityBand = 0.20 // price and area within ±20% of the subject
	positionBand   = 0.10 // above/below market beyond ±10% of the comparable average
)

// Options configures an Engine.
type Options struct {
	Listings storage.ListingStore
	Cache    *cache.Cache // optional
	CacheTTL time.Duration
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Engine generates comparable reports.
type Engine struct {
	listings storage.ListingStore
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  *observability.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.ReportTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		listings: opts.Listings,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		log:      opts.Logger.With().Str("component", "comparable").Logger(),
		now:      opts.Now,
	}
}

// Generate builds the report for listingID. A missing or deleted listing
// yields *domain.NotFoundError; other failures yield *domain.ReportError.
// A report is either complete or not returned at all.
func (e *Engine) Generate(ctx context.Context, listingID int64) (*domain.ComparableReport, error) {
	subject, err := e.listings.GetByID(ctx, listingID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && subject.Status == domain.ListingStatusDeleted) {
		return nil, &domain.NotFoundError{Entity: "listing", ID: strconv.FormatInt(listingID, 10)}
	}
	if err != nil {
		return nil, &domain.ReportError{ListingID: listingID, Err: err}
	}
	e.metrics.AddListingsProcessed(1)

	comps, err := e.listings.FindComparables(ctx, comparableQuery(subject))
	if err != nil {
		return nil, &domain.ReportError{ListingID: listingID, Err: err}
	}

	report := &domain.ComparableReport{
		ListingID:   listingID,
		Subject:     *subject,
		Comparables: make([]domain.Listing, 0, len(comps)),
		Analysis:    analyze(subject, comps),
		GeneratedAt: e.now().UTC(),
	}
	for _, c := range comps {
		report.Comparables = append(report.Comparables, *c)
	}

	if e.cache != nil {
		key := cache.ReportKey(listingID)
		if err := e.cache.SetObject(ctx, key, report, e.cacheTTL); err != nil {
			e.log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
		}
	}

	e.metrics.RecordReportGenerated()
	e.log.Info().
		Int64("listing_id", listingID).
		Int("comparables", len(comps)).
		Str("position", string(report.Analysis.PricePosition)).
		Msg("property report generated")

	return report, nil
}

// comparableQuery treats a missing subject area as 0, so only comparables
// with an area of exactly 0 can match the area band.
func comparableQuery(subject *domain.Listing) storage.ComparableQuery {
	priceDelta := subject.Price * similarityBand
	area := subject.AreaOrZero()
	areaDelta := area * similarityBand

	return storage.ComparableQuery{
		State:       subject.State,
		City:        subject.City,
		Category:    subject.Category,
		PriceMin:    subject.Price - priceDelta,
		PriceMax:    subject.Price + priceDelta,
		AreaMin:     area - areaDelta,
		AreaMax:     area + areaDelta,
		ExcludeID:   subject.ID,
		TargetPrice: subject.Price,
		Limit:       MaxComparables,
	}
}

func analyze(subject *domain.Listing, comps []*domain.Listing) domain.ComparableAnalysis {
	analysis := domain.ComparableAnalysis{
		ComparableCount: len(comps),
		PricePosition:   domain.PriceInsufficientData,
		PricePerArea:    pricePerArea(subject),
		DaysOnMarket:    EstimateDaysOnMarket(subject),
	}
	if len(comps) == 0 {
		return analysis
	}

	prices := make([]float64, len(comps))
	for i, c := range comps {
		prices[i] = c.Price
	}
	avg := stat.Mean(prices, nil)
	analysis.AvgComparablePrice = &avg
	analysis.PricePosition = pricePosition(subject.Price, avg)
	return analysis
}

func pricePosition(price, avg float64) domain.PricePosition {
	switch {
	case price > avg*(1+positionBand):
		return domain.PriceAboveMarket
	case price < avg*(1-positionBand):
		return domain.PriceBelowMarket
	default:
		return domain.PriceMarketRate
	}
}

// pricePerArea divides by area, or by 1 when the area is unknown or zero.
func pricePerArea(l *domain.Listing) float64 {
	if !l.HasArea() {
		return l.Price
	}
	return l.Price / *l.Area
}
