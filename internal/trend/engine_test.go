package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-analytics/internal/cache"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/storage"
	"estate-analytics/internal/storage/memory"
)

// fixedNow is a Tuesday; a 30 day window spans 2025-03-16 .. 2025-04-15.
var fixedNow = time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	listings *memory.ListingStore
	trends   *memory.TrendStore
	history  *memory.TrendHistoryStore
	mr       *miniredis.Miniredis
	cache    *cache.Cache
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, trends storage.TrendStore) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		listings: memory.NewListingStore(),
		trends:   memory.NewTrendStore(),
		history:  memory.NewTrendHistoryStore(),
		mr:       mr,
		cache:    cache.New(cache.NewRedisStore(client, time.Second, nil), nil),
		metrics:  observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	if trends == nil {
		trends = f.trends
	}

	f.engine = New(Options{
		Listings: f.listings,
		Trends:   trends,
		History:  f.history,
		Cache:    f.cache,
		State:    "TX",
		Metrics:  f.metrics,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) addSold(t *testing.T, city, category string, price float64, listed time.Time) {
	t.Helper()
	require.NoError(t, f.listings.Insert(context.Background(), &domain.Listing{
		City:        city,
		State:       "TX",
		Category:    category,
		Price:       price,
		Area:        area(price / 200),
		ListingDate: listed,
		UpdatedAt:   listed.Add(10 * 24 * time.Hour),
		Status:      domain.ListingStatusSold,
	}))
}

func TestCompute_NoSalesIsAllZero(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.engine.Compute(context.Background(), Request{City: "Austin", Category: "residential", WindowDays: 30})
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalSales)
	assert.Zero(t, report.AvgPrice)
	assert.Zero(t, report.MedianPrice)
	assert.Zero(t, report.MinPrice)
	assert.Zero(t, report.MaxPrice)
	assert.Zero(t, report.PriceStdDev)
	assert.Zero(t, report.AvgPricePerArea)
	assert.Zero(t, report.AvgDaysOnMarket)
	assert.Equal(t, domain.TrendInsufficientData, report.Trend)
	assert.Empty(t, report.Weekly)
}

func TestCompute_AustinExample(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := range 12 {
		price := 300000 + float64(i)*150000/11
		f.addSold(t, "Austin", "residential", price, day(2025, 3, 17).AddDate(0, 0, 2*i))
	}
	// Noise that must be filtered out.
	f.addSold(t, "Austin", "commercial", 900000, day(2025, 3, 20))
	f.addSold(t, "Houston", "residential", 250000, day(2025, 3, 20))
	f.addSold(t, "Austin", "residential", 100000, day(2025, 2, 1))

	report, err := f.engine.Compute(ctx, Request{City: "Austin", Category: "residential", WindowDays: 30})
	require.NoError(t, err)

	assert.Equal(t, 12, report.TotalSales)
	assert.InDelta(t, 375000, report.AvgPrice, 1e-6)
	assert.InDelta(t, 375000, report.MedianPrice, 1e-6)
	assert.Equal(t, 300000.0, report.MinPrice)
	assert.InDelta(t, 450000, report.MaxPrice, 1e-6)
	assert.InDelta(t, 200, report.AvgPricePerArea, 1e-9)
	assert.InDelta(t, 10, report.AvgDaysOnMarket, 1e-9)
	assert.Contains(t, []domain.TrendLabel{domain.TrendUp, domain.TrendDown, domain.TrendStable}, report.Trend)
	assert.Equal(t, "TX", report.State)
	assert.Equal(t, day(2025, 3, 16), report.PeriodStart)
	assert.Equal(t, day(2025, 4, 15), report.PeriodEnd)

	// Persisted under its natural key.
	stored, err := f.trends.GetByKey(ctx, report.TrendKey)
	require.NoError(t, err)
	assert.Equal(t, report.TotalSales, stored.TotalSales)

	// Cached under the trend key with a bounded TTL.
	key := "trend:Austin:residential"
	require.True(t, f.mr.Exists(key))
	ttl := f.mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)

	var cached domain.TrendReport
	require.NoError(t, f.cache.GetObject(ctx, key, &cached))
	assert.Equal(t, 12, cached.TotalSales)

	history, err := f.history.GetHistory(ctx, "Austin", "residential", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MarketTrendsCalculated))
	assert.Equal(t, 12.0, testutil.ToFloat64(f.metrics.ListingsProcessed))
}

func TestCompute_ClassifiesUpAndDown(t *testing.T) {
	tests := []struct {
		name   string
		prices [4]float64
		want   domain.TrendLabel
	}{
		{"up", [4]float64{100000, 100000, 120000, 120000}, domain.TrendUp},
		{"down", [4]float64{120000, 120000, 100000, 100000}, domain.TrendDown},
		{"stable", [4]float64{100000, 100000, 104000, 104000}, domain.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			weeks := []time.Time{day(2025, 3, 18), day(2025, 3, 25), day(2025, 4, 1), day(2025, 4, 8)}
			for i, w := range weeks {
				f.addSold(t, "Dallas", "commercial", tt.prices[i], w)
			}

			report, err := f.engine.Compute(context.Background(), Request{City: "Dallas", Category: "commercial", WindowDays: 30})
			require.NoError(t, err)
			require.Len(t, report.Weekly, 4)
			assert.Equal(t, tt.want, report.Trend)
		})
	}
}

func TestCompute_AllCategories(t *testing.T) {
	f := newFixture(t, nil)
	f.addSold(t, "Austin", "residential", 300000, day(2025, 3, 20))
	f.addSold(t, "Austin", "land", 100000, day(2025, 3, 21))

	report, err := f.engine.Compute(context.Background(), Request{City: "Austin", WindowDays: 30})
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryAll, report.Category)
	assert.Equal(t, 2, report.TotalSales)
	assert.True(t, f.mr.Exists("trend:Austin:all"))
}

func TestCompute_IsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addSold(t, "Austin", "residential", 300000, day(2025, 3, 20))
	f.addSold(t, "Austin", "residential", 320000, day(2025, 4, 2))

	req := Request{City: "Austin", Category: "residential", WindowDays: 30}
	first, err := f.engine.Compute(ctx, req)
	require.NoError(t, err)
	firstCached, err := f.mr.Get("trend:Austin:residential")
	require.NoError(t, err)

	second, err := f.engine.Compute(ctx, req)
	require.NoError(t, err)
	secondCached, err := f.mr.Get("trend:Austin:residential")
	require.NoError(t, err)

	assert.Equal(t, 1, f.trends.Len())
	assert.Equal(t, first, second)
	assert.Equal(t, firstCached, secondCached)
}

type failingTrendStore struct {
	storage.TrendStore
}

func (failingTrendStore) Upsert(context.Context, *domain.TrendReport) error {
	return errors.New("unique violation")
}

func TestCompute_PersistenceFailureSkipsCache(t *testing.T) {
	f := newFixture(t, failingTrendStore{})
	f.addSold(t, "Austin", "residential", 300000, day(2025, 3, 20))

	report, err := f.engine.Compute(context.Background(), Request{City: "Austin", Category: "residential", WindowDays: 30})
	require.Error(t, err)
	assert.Nil(t, report)

	var compErr *domain.TrendComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "Austin", compErr.City)

	var persistErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "residential", persistErr.Key.Category)

	assert.False(t, f.mr.Exists("trend:Austin:residential"))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.MarketTrendsCalculated))
}

func TestCompute_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Compute(context.Background(), Request{WindowDays: 30})
	var compErr *domain.TrendComputationError
	assert.ErrorAs(t, err, &compErr)

	_, err = f.engine.Compute(context.Background(), Request{City: "Austin", WindowDays: 0})
	assert.ErrorAs(t, err, &compErr)
}
