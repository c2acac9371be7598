package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

func snapshot(avg float64, calculatedAt time.Time) *domain.TrendReport {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.TrendReport{
		TrendKey: domain.TrendKey{
			City:        "Austin",
			State:       "TX",
			Category:    domain.CategoryResidential,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 0, 31),
		},
		TotalSales: 4,
		AvgPrice:   avg,
		Trend:      domain.TrendStable,
		Weekly: []domain.WeeklyBucket{
			{WeekStart: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Sales: 2, AvgPrice: avg - 1000},
			{WeekStart: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Sales: 2, AvgPrice: avg + 1000},
		},
		CalculatedAt: calculatedAt,
	}
}

func TestTrendHistoryStore_AppendAndGetHistory(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrendHistoryStore(conn)
	ctx := context.Background()

	first := time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, snapshot(400000, first)))
	require.NoError(t, store.Append(ctx, snapshot(410000, first.Add(24*time.Hour))))

	history, err := store.GetHistory(ctx, "Austin", domain.CategoryResidential, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 410000.0, history[0].AvgPrice)
	assert.Equal(t, 400000.0, history[1].AvgPrice)
	assert.Equal(t, 4, history[0].TotalSales)
	require.Len(t, history[0].Weekly, 2)
	assert.Equal(t, 409000.0, history[0].Weekly[0].AvgPrice)

	limited, err := store.GetHistory(ctx, "Austin", domain.CategoryResidential, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.GetHistory(ctx, "Houston", domain.CategoryResidential, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTrendHistoryStore_RejectsInvalid(t *testing.T) {
	store := NewTrendHistoryStore(nil)
	assert.ErrorIs(t, store.Append(context.Background(), &domain.TrendReport{}), storage.ErrInvalidInput)
}
