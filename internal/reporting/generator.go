package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

// Generator produces reports from persisted market trends.
type Generator struct {
	trendStore storage.TrendStore
	latestOnly bool
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(trendStore storage.TrendStore) *Generator {
	return &Generator{
		trendStore: trendStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// LatestOnly keeps only the newest period of each (city, category).
func (g *Generator) LatestOnly(latest bool) *Generator {
	g.latestOnly = latest
	return g
}

// Generate builds a report for cities. Duplicate cities are exported once.
func (g *Generator) Generate(ctx context.Context, cities []string) (*Report, error) {
	report := &Report{
		GeneratedAt: g.now(),
	}

	seen := make(map[string]bool, len(cities))
	for _, city := range cities {
		if seen[city] {
			continue
		}
		seen[city] = true
		report.Cities = append(report.Cities, city)

		trends, err := g.trendStore.ListByCity(ctx, city)
		if err != nil {
			return nil, fmt.Errorf("list trends for %s: %w", city, err)
		}
		if len(trends) == 0 {
			report.Summary.MissingCity = append(report.Summary.MissingCity, city)
			continue
		}

		rows := make([]TrendRow, 0, len(trends))
		latest := make(map[string]bool)
		for _, t := range trends {
			if g.latestOnly {
				if latest[t.Category] {
					continue
				}
				latest[t.Category] = true
			}
			rows = append(rows, rowFromTrend(t))
		}

		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Category != rows[j].Category {
				return rows[i].Category < rows[j].Category
			}
			return rows[i].PeriodEnd.After(rows[j].PeriodEnd)
		})
		report.Rows = append(report.Rows, rows...)
	}

	report.Summary = summarize(report.Rows, report.Summary.MissingCity)
	return report, nil
}

func summarize(rows []TrendRow, missing []string) Summary {
	s := Summary{TotalRows: len(rows), MissingCity: missing}
	for _, r := range rows {
		s.TotalSales += r.TotalSales
		switch r.Trend {
		case domain.TrendUp:
			s.Up++
		case domain.TrendDown:
			s.Down++
		case domain.TrendStable:
			s.Stable++
		default:
			s.Insufficient++
		}
	}
	return s
}
