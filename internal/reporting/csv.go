package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders trend rows as CSV string.
func RenderCSV(rows []TrendRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("city,state,property_type,period_start,period_end,total_sales,")
	sb.WriteString("avg_price,median_price,min_price,max_price,price_stddev,")
	sb.WriteString("avg_price_per_sqft,avg_days_on_market,price_trend,weeks\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%s,%d\n",
			csvField(r.City),
			csvField(r.State),
			csvField(r.Category),
			r.PeriodStart.Format(time.DateOnly),
			r.PeriodEnd.Format(time.DateOnly),
			r.TotalSales,
			r.AvgPrice,
			r.MedianPrice,
			r.MinPrice,
			r.MaxPrice,
			r.PriceStdDev,
			r.AvgPricePerArea,
			r.AvgDaysOnMarket,
			r.Trend,
			len(r.Weekly),
		))
	}

	return sb.String()
}

// csvField quotes values containing separators, quotes or newlines.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
