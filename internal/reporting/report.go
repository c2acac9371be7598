package reporting

import (
	"time"

	"estate-analytics/internal/domain"
)

// Report is a market trend export over a set of cities.
type Report struct {
	GeneratedAt time.Time
	Cities      []string

	Summary Summary

	// Rows sorted by city (input order), category, then newest period first.
	Rows []TrendRow
}

// Summary aggregates the exported rows.
type Summary struct {
	TotalRows   int
	TotalSales  int
	Up          int
	Down        int
	Stable      int
	Insufficient int
	MissingCity []string // requested cities with no persisted trend
}

// TrendRow is one persisted market trend.
type TrendRow struct {
	City            string
	State           string
	Category        string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	TotalSales      int
	AvgPrice        float64
	MedianPrice     float64
	MinPrice        float64
	MaxPrice        float64
	PriceStdDev     float64
	AvgPricePerArea float64
	AvgDaysOnMarket float64
	Trend           domain.TrendLabel
	Weekly          []domain.WeeklyBucket
	CalculatedAt    time.Time
}

func rowFromTrend(r *domain.TrendReport) TrendRow {
	return TrendRow{
		City:            r.City,
		State:           r.State,
		Category:        r.Category,
		PeriodStart:     r.PeriodStart,
		PeriodEnd:       r.PeriodEnd,
		TotalSales:      r.TotalSales,
		AvgPrice:        r.AvgPrice,
		MedianPrice:     r.MedianPrice,
		MinPrice:        r.MinPrice,
		MaxPrice:        r.MaxPrice,
		PriceStdDev:     r.PriceStdDev,
		AvgPricePerArea: r.AvgPricePerArea,
		AvgDaysOnMarket: r.AvgDaysOnMarket,
		Trend:           r.Trend,
		Weekly:          r.Weekly,
		CalculatedAt:    r.CalculatedAt,
	}
}
