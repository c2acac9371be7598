package domain

import "time"

// TrendLabel is the discrete price trend direction of a market slice.
type TrendLabel string

// Trend labels.
const (
	TrendUp               TrendLabel = "up"
	TrendDown             TrendLabel = "down"
	TrendStable           TrendLabel = "stable"
	TrendInsufficientData TrendLabel = "insufficient_data"
)

// TrendKey is the natural key of a market_trends row.
type TrendKey struct {
	City        string    `json:"city" msgpack:"city"`
	State       string    `json:"state" msgpack:"state"`
	Category    string    `json:"property_type" msgpack:"property_type"`
	PeriodStart time.Time `json:"period_start" msgpack:"period_start"` // date, UTC midnight
	PeriodEnd   time.Time `json:"period_end" msgpack:"period_end"`     // date, UTC midnight
}

// WeeklyBucket aggregates sold listings of one calendar week.
type WeeklyBucket struct {
	WeekStart time.Time `json:"week" msgpack:"week"`
	Sales     int       `json:"weekly_sales" msgpack:"weekly_sales"`
	AvgPrice  float64   `json:"weekly_avg_price" msgpack:"weekly_avg_price"`
}

// TrendReport holds derived market statistics for a (region, category, period).
// Numeric fields are always finite; empty aggregates render as 0.
type TrendReport struct {
	TrendKey

	TotalSales      int     `json:"total_sales" msgpack:"total_sales"`
	AvgPrice        float64 `json:"avg_price" msgpack:"avg_price"`
	MedianPrice     float64 `json:"median_price" msgpack:"median_price"`
	MinPrice        float64 `json:"min_price" msgpack:"min_price"`
	MaxPrice        float64 `json:"max_price" msgpack:"max_price"`
	PriceStdDev     float64 `json:"price_stddev" msgpack:"price_stddev"`
	AvgPricePerArea float64 `json:"avg_price_per_sqft" msgpack:"avg_price_per_sqft"`
	AvgDaysOnMarket float64 `json:"avg_days_on_market" msgpack:"avg_days_on_market"`

	Trend  TrendLabel     `json:"price_trend" msgpack:"price_trend"`
	Weekly []WeeklyBucket `json:"weekly_trends" msgpack:"weekly_trends"`

	CalculatedAt time.Time `json:"calculated_at" msgpack:"calculated_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" msgpack:"updated_at,omitempty"` // set by the store
}
