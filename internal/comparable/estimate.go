package comparable

import (
	"fmt"
	"math"

	"estate-analytics/internal/domain"
)

// DefaultDaysOnMarket is used for unknown categories and as the fallback
// whenever an estimate cannot be computed.
const DefaultDaysOnMarket = 60

var baseDaysByCategory = map[string]int{
	domain.CategoryResidential: 45,
	domain.CategoryCommercial:  90,
	domain.CategoryIndustrial:  120,
	domain.CategoryLand:        180,
}

// Price thresholds for the days-on-market multiplier. Only the highest
// matching threshold applies.
const (
	highPriceThreshold = 1_000_000 // x1.5
	midPriceThreshold  = 500_000   // x1.2
)

// EstimateDaysOnMarket estimates how long l stays listed from its category
// and price. It never fails: unusable input yields the default with
// Source set to domain.EstimateDefault.
func EstimateDaysOnMarket(l *domain.Listing) domain.DaysOnMarketEstimate {
	if l == nil {
		return fallback("no listing")
	}
	if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price < 0 {
		return fallback(fmt.Sprintf("unusable price %v", l.Price))
	}

	days, ok := baseDaysByCategory[l.Category]
	if !ok {
		days = DefaultDaysOnMarket
	}

	// Integer arithmetic truncates exactly like int(base * multiplier).
	switch {
	case l.Price > highPriceThreshold:
		days = days * 3 / 2
	case l.Price > midPriceThreshold:
		days = days * 6 / 5
	}

	return domain.DaysOnMarketEstimate{Days: days, Source: domain.EstimateComputed}
}

func fallback(reason string) domain.DaysOnMarketEstimate {
	return domain.DaysOnMarketEstimate{
		Days:   DefaultDaysOnMarket,
		Source: domain.EstimateDefault,
		Reason: reason,
	}
}
