package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

// TrendHistoryStore implements storage.TrendHistoryStore using ClickHouse.
type TrendHistoryStore struct {
	conn *Conn
}

// NewTrendHistoryStore creates a new TrendHistoryStore.
func NewTrendHistoryStore(conn *Conn) *TrendHistoryStore {
	return &TrendHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TrendHistoryStore = (*TrendHistoryStore)(nil)

// Append records one snapshot row plus one row per weekly bucket.
func (s *TrendHistoryStore) Append(ctx context.Context, r *domain.TrendReport) error {
	if r == nil || r.City == "" || r.Category == "" {
		return storage.ErrInvalidInput
	}

	snapshotID := uuid.NewString()
	calculatedAt := r.CalculatedAt.UTC()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trend_snapshots (
			snapshot_id, city, state, property_type, period_start, period_end,
			total_sales, avg_price, median_price, min_price, max_price, price_stddev,
			avg_price_per_sqft, avg_days_on_market, price_trend, calculated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot batch: %w", err)
	}
	err = batch.Append(
		snapshotID, r.City, r.State, r.Category, r.PeriodStart.UTC(), r.PeriodEnd.UTC(),
		uint32(r.TotalSales), r.AvgPrice, r.MedianPrice, r.MinPrice, r.MaxPrice, r.PriceStdDev,
		r.AvgPricePerArea, r.AvgDaysOnMarket, string(r.Trend), calculatedAt,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send snapshot batch: %w", err)
	}

	if len(r.Weekly) == 0 {
		return nil
	}

	weekly, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trend_weekly_buckets (
			snapshot_id, city, property_type, week_start, weekly_sales, weekly_avg, calculated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare weekly batch: %w", err)
	}
	for _, b := range r.Weekly {
		err = weekly.Append(snapshotID, r.City, r.Category, b.WeekStart.UTC(), uint32(b.Sales), b.AvgPrice, calculatedAt)
		if err != nil {
			return fmt.Errorf("append weekly bucket: %w", err)
		}
	}
	if err := weekly.Send(); err != nil {
		return fmt.Errorf("send weekly batch: %w", err)
	}

	return nil
}

// GetHistory retrieves up to limit snapshots for (city, category), newest first.
func (s *TrendHistoryStore) GetHistory(ctx context.Context, city, category string, limit int) ([]*domain.TrendReport, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.Query(ctx, `
		SELECT
			snapshot_id, city, state, property_type, period_start, period_end,
			total_sales, avg_price, median_price, min_price, max_price, price_stddev,
			avg_price_per_sqft, avg_days_on_market, price_trend, calculated_at
		FROM trend_snapshots
		WHERE city = ? AND property_type = ?
		ORDER BY calculated_at DESC
		LIMIT ?
	`, city, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.TrendReport
	byID := make(map[string]*domain.TrendReport)
	for rows.Next() {
		var (
			r          domain.TrendReport
			snapshotID string
			totalSales uint32
			label      string
		)
		err := rows.Scan(
			&snapshotID, &r.City, &r.State, &r.Category, &r.PeriodStart, &r.PeriodEnd,
			&totalSales, &r.AvgPrice, &r.MedianPrice, &r.MinPrice, &r.MaxPrice, &r.PriceStdDev,
			&r.AvgPricePerArea, &r.AvgDaysOnMarket, &label, &r.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.TotalSales = int(totalSales)
		r.Trend = domain.TrendLabel(label)
		result = append(result, &r)
		byID[snapshotID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	if err := s.loadWeekly(ctx, city, category, limit, byID); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *TrendHistoryStore) loadWeekly(ctx context.Context, city, category string, limit int, byID map[string]*domain.TrendReport) error {
	rows, err := s.conn.Query(ctx, `
		SELECT snapshot_id, week_start, weekly_sales, weekly_avg
		FROM trend_weekly_buckets
		WHERE city = ? AND property_type = ? AND snapshot_id IN (
			SELECT snapshot_id
			FROM trend_snapshots
			WHERE city = ? AND property_type = ?
			ORDER BY calculated_at DESC
			LIMIT ?
		)
		ORDER BY snapshot_id, week_start
	`, city, category, city, category, limit)
	if err != nil {
		return fmt.Errorf("query weekly buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snapshotID string
			weekStart  time.Time
			sales      uint32
			avg        float64
		)
		if err := rows.Scan(&snapshotID, &weekStart, &sales, &avg); err != nil {
			return fmt.Errorf("scan weekly bucket: %w", err)
		}
		if r, ok := byID[snapshotID]; ok {
			r.Weekly = append(r.Weekly, domain.WeeklyBucket{WeekStart: weekStart.UTC(), Sales: int(sales), AvgPrice: avg})
		}
	}
	return rows.Err()
}
