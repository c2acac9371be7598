package trend

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"estate-analytics/internal/domain"
)

// summary holds the aggregate statistics of one market slice.
// Every field is 0 when the slice is empty.
type summary struct {
	count           int
	mean            float64
	median          float64
	min             float64
	max             float64
	stddev          float64
	avgPricePerArea float64
	avgDaysOnMarket float64
}

// summarize computes aggregate statistics over sold listings.
func summarize(listings []*domain.Listing) summary {
	n := len(listings)
	if n == 0 {
		return summary{}
	}

	prices := make([]float64, n)
	days := make([]float64, n)
	var perArea []float64
	for i, l := range listings {
		prices[i] = l.Price
		days[i] = l.DaysOnMarket()
		if l.HasArea() {
			perArea = append(perArea, l.Price/(*l.Area))
		}
	}

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	return summary{
		count:           n,
		mean:            finite(mean(prices)),
		median:          finite(percentile(sorted, 0.5)),
		min:             finite(floats.Min(prices)),
		max:             finite(floats.Max(prices)),
		stddev:          finite(stddev(prices)),
		avgPricePerArea: finite(mean(perArea)),
		avgDaysOnMarket: finite(mean(days)),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// percentile uses linear interpolation between closest ranks.
// sorted must be pre-sorted ASC; p is in [0, 1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// finite coerces NaN and Inf to 0 so reports never carry them.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
