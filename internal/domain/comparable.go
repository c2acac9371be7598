package domain

import "time"

// PricePosition classifies a listing price against its comparables.
type PricePosition string

// Price positions.
const (
	PriceAboveMarket      PricePosition = "above_market"
	PriceBelowMarket      PricePosition = "below_market"
	PriceMarketRate       PricePosition = "market_rate"
	PriceInsufficientData PricePosition = "insufficient_data"
)

// EstimateSource tells whether a days-on-market value was computed or fell back to the default.
type EstimateSource string

// Estimate sources.
const (
	EstimateComputed EstimateSource = "estimated"
	EstimateDefault  EstimateSource = "default"
)

// DaysOnMarketEstimate is a best-effort estimate of how long a listing stays on the market.
type DaysOnMarketEstimate struct {
	Days   int            `json:"days" msgpack:"days"`
	Source EstimateSource `json:"source" msgpack:"source"`
	Reason string         `json:"reason,omitempty" msgpack:"reason,omitempty"` // set for fallbacks
}

// ComparableAnalysis holds insight metrics derived from comparables.
type ComparableAnalysis struct {
	ComparableCount    int                  `json:"comparable_count" msgpack:"comparable_count"`
	AvgComparablePrice *float64             `json:"avg_comparable_price" msgpack:"avg_comparable_price"` // nil without comparables
	PricePosition      PricePosition        `json:"price_position" msgpack:"price_position"`
	PricePerArea       float64              `json:"price_per_sqft" msgpack:"price_per_sqft"`
	DaysOnMarket       DaysOnMarketEstimate `json:"estimated_days_on_market" msgpack:"estimated_days_on_market"`
}

// ComparableReport is an ephemeral report for a single listing. It is cached, never persisted.
type ComparableReport struct {
	ListingID   int64              `json:"listing_id" msgpack:"listing_id"`
	Subject     Listing            `json:"property" msgpack:"property"`
	Comparables []Listing          `json:"comparables" msgpack:"comparables"`
	Analysis    ComparableAnalysis `json:"analysis" msgpack:"analysis"`
	GeneratedAt time.Time          `json:"generated_at" msgpack:"generated_at"`
}
