package trend

import (
	"sort"
	"time"

	"estate-analytics/internal/domain"
)

// Classification thresholds: a move beyond ±5% of the older average.
const (
	upThreshold   = 1.05
	downThreshold = 0.95
)

// WeekStart truncates t to Monday 00:00 UTC of its week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// WeeklyBuckets groups listings by calendar week, ordered by week ascending.
func WeeklyBuckets(listings []*domain.Listing) []domain.WeeklyBucket {
	type acc struct {
		sales int
		sum   float64
	}
	byWeek := make(map[time.Time]*acc)
	for _, l := range listings {
		week := WeekStart(l.ListingDate)
		a, ok := byWeek[week]
		if !ok {
			a = &acc{}
			byWeek[week] = a
		}
		a.sales++
		a.sum += l.Price
	}

	buckets := make([]domain.WeeklyBucket, 0, len(byWeek))
	for week, a := range byWeek {
		buckets = append(buckets, domain.WeeklyBucket{
			WeekStart: week,
			Sales:     a.sales,
			AvgPrice:  finite(a.sum / float64(a.sales)),
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].WeekStart.Before(buckets[j].WeekStart)
	})
	return buckets
}

// Classify labels the price direction of ordered weekly buckets.
//
// The mean of the last two buckets ("recent") is compared with the mean of
// the first two ("older"). With fewer than 4 buckets older is taken to be
// recent, so the label is always stable.
func Classify(buckets []domain.WeeklyBucket) domain.TrendLabel {
	n := len(buckets)
	if n < 2 {
		return domain.TrendInsufficientData
	}

	recent := (buckets[n-1].AvgPrice + buckets[n-2].AvgPrice) / 2
	older := recent
	if n >= 4 {
		older = (buckets[0].AvgPrice + buckets[1].AvgPrice) / 2
	}

	switch {
	case recent > older*upThreshold:
		return domain.TrendUp
	case recent < older*downThreshold:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}
