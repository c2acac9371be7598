package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

const trendColumns = `city, state, property_type, period_start, period_end,
	total_sales, avg_price, median_price, min_price, max_price, price_stddev,
	avg_price_per_sqft, avg_days_on_market, price_trend, weekly_trends,
	calculated_at, updated_at`

const upsertTrendSQL = `
	INSERT INTO market_trends (
		city, state, property_type, period_start, period_end,
		total_sales, avg_price, median_price, min_price, max_price, price_stddev,
		avg_price_per_sqft, avg_days_on_market, price_trend, weekly_trends, calculated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (city, state, property_type, period_start, period_end)
	DO UPDATE SET
		total_sales = EXCLUDED.total_sales,
		avg_price = EXCLUDED.avg_price,
		median_price = EXCLUDED.median_price,
		min_price = EXCLUDED.min_price,
		max_price = EXCLUDED.max_price,
		price_stddev = EXCLUDED.price_stddev,
		avg_price_per_sqft = EXCLUDED.avg_price_per_sqft,
		avg_days_on_market = EXCLUDED.avg_days_on_market,
		price_trend = EXCLUDED.price_trend,
		weekly_trends = EXCLUDED.weekly_trends,
		calculated_at = EXCLUDED.calculated_at,
		updated_at = NOW()
`

// TrendStore implements storage.TrendStore using PostgreSQL.
type TrendStore struct {
	conn *Connector
}

// NewTrendStore creates a new TrendStore.
func NewTrendStore(conn *Connector) *TrendStore {
	return &TrendStore{conn: conn}
}

// Upsert inserts the report or overwrites every derived field of the row
// sharing its natural key. The statement runs in its own transaction.
func (s *TrendStore) Upsert(ctx context.Context, r *domain.TrendReport) error {
	if r == nil || r.City == "" || r.Category == "" {
		return storage.ErrInvalidInput
	}

	weekly := r.Weekly
	if weekly == nil {
		weekly = []domain.WeeklyBucket{}
	}
	weeklyJSON, err := json.Marshal(weekly)
	if err != nil {
		return fmt.Errorf("encode weekly trends: %w", err)
	}

	return s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin upsert trend: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx, upsertTrendSQL,
			r.City,
			r.State,
			r.Category,
			dateOnly(r.PeriodStart),
			dateOnly(r.PeriodEnd),
			r.TotalSales,
			r.AvgPrice,
			r.MedianPrice,
			r.MinPrice,
			r.MaxPrice,
			r.PriceStdDev,
			r.AvgPricePerArea,
			r.AvgDaysOnMarket,
			string(r.Trend),
			weeklyJSON,
			r.CalculatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert trend: %w", err)
		}
		return tx.Commit(ctx)
	})
}

// GetByKey retrieves a report by its natural key. Returns ErrNotFound if not exists.
func (s *TrendStore) GetByKey(ctx context.Context, key domain.TrendKey) (*domain.TrendReport, error) {
	query, args, err := psql.Select(trendColumns).
		From("market_trends").
		Where(sq.Eq{
			"city":          key.City,
			"state":         key.State,
			"property_type": key.Category,
			"period_start":  dateOnly(key.PeriodStart),
			"period_end":    dateOnly(key.PeriodEnd),
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get trend: %w", err)
	}

	var r *domain.TrendReport
	err = s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		r, err = scanTrend(conn.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListByCity retrieves all reports for a city, newest period first.
func (s *TrendStore) ListByCity(ctx context.Context, city string) ([]*domain.TrendReport, error) {
	query, args, err := psql.Select(trendColumns).
		From("market_trends").
		Where(sq.Eq{"city": city}).
		OrderBy("period_end DESC", "property_type ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list trends: %w", err)
	}

	var result []*domain.TrendReport
	err = s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query trends: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanTrend(rows)
			if err != nil {
				return err
			}
			result = append(result, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanTrend(row pgx.Row) (*domain.TrendReport, error) {
	var r domain.TrendReport
	var label string
	var weeklyJSON []byte
	err := row.Scan(
		&r.City,
		&r.State,
		&r.Category,
		&r.PeriodStart,
		&r.PeriodEnd,
		&r.TotalSales,
		&r.AvgPrice,
		&r.MedianPrice,
		&r.MinPrice,
		&r.MaxPrice,
		&r.PriceStdDev,
		&r.AvgPricePerArea,
		&r.AvgDaysOnMarket,
		&label,
		&weeklyJSON,
		&r.CalculatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Trend = domain.TrendLabel(label)
	if err := json.Unmarshal(weeklyJSON, &r.Weekly); err != nil {
		return nil, fmt.Errorf("decode weekly trends: %w", err)
	}
	return &r, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ storage.TrendStore = (*TrendStore)(nil)
