package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Market Trend Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Cities: %s\n\n", strings.Join(r.Cities, ", ")))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trend Rows | %d |\n", r.Summary.TotalRows))
	sb.WriteString(fmt.Sprintf("| Total Sales | %d |\n", r.Summary.TotalSales))
	sb.WriteString(fmt.Sprintf("| Up | %d |\n", r.Summary.Up))
	sb.WriteString(fmt.Sprintf("| Down | %d |\n", r.Summary.Down))
	sb.WriteString(fmt.Sprintf("| Stable | %d |\n", r.Summary.Stable))
	sb.WriteString(fmt.Sprintf("| Insufficient Data | %d |\n", r.Summary.Insufficient))
	sb.WriteString("\n")

	if len(r.Summary.MissingCity) > 0 {
		sb.WriteString("### Cities Without Trends\n\n")
		for _, city := range r.Summary.MissingCity {
			sb.WriteString(fmt.Sprintf("- %s\n", city))
		}
		sb.WriteString("\n")
	}

	// Market Trends
	sb.WriteString("## Market Trends\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| City | Type | Period | Sales | Avg | Median | Min | Max | StdDev | $/sqft | DOM | Trend |\n")
		sb.WriteString("|------|------|--------|-------|-----|--------|-----|-----|--------|--------|-----|-------|\n")
		for _, t := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %s, %s | %s | %s..%s | %d | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.1f | %s |\n",
				t.City, t.State, t.Category,
				t.PeriodStart.Format(time.DateOnly), t.PeriodEnd.Format(time.DateOnly),
				t.TotalSales, t.AvgPrice, t.MedianPrice, t.MinPrice, t.MaxPrice,
				t.PriceStdDev, t.AvgPricePerArea, t.AvgDaysOnMarket, t.Trend))
		}
	} else {
		sb.WriteString("No market trends available.\n")
	}
	sb.WriteString("\n")

	// Weekly breakdown
	sb.WriteString("## Weekly Breakdown\n\n")
	wrote := false
	for _, t := range r.Rows {
		if len(t.Weekly) == 0 {
			continue
		}
		wrote = true
		sb.WriteString(fmt.Sprintf("### %s / %s (%s)\n\n", t.City, t.Category, t.PeriodEnd.Format(time.DateOnly)))
		sb.WriteString("| Week | Sales | Avg Price |\n")
		sb.WriteString("|------|-------|-----------|\n")
		for _, w := range t.Weekly {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f |\n", w.WeekStart.Format(time.DateOnly), w.Sales, w.AvgPrice))
		}
		sb.WriteString("\n")
	}
	if !wrote {
		sb.WriteString("No weekly data available.\n\n")
	}

	return sb.String()
}
