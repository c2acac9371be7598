// Command report exports persisted market trends as CSV and Markdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"estate-analytics/internal/config"
	"estate-analytics/internal/reporting"
	pgstore "estate-analytics/internal/storage/postgres"
)

func main() {
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	cities := flag.String("cities", "", "Comma-separated cities (default: configured market cities)")
	format := flag.String("format", "both", "Output format: csv, markdown or both")
	latest := flag.Bool("latest", false, "Export only the newest period per (city, category)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cityList := cfg.Market.Cities
	if *cities != "" {
		cityList = nil
		for _, c := range strings.Split(*cities, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cityList = append(cityList, c)
			}
		}
	}

	switch *format {
	case "csv", "markdown", "both":
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", *format)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	policy := pgstore.RetryPolicy{MaxAttempts: cfg.DBConnectAttempts, BaseDelay: cfg.DBConnectBaseDelay}
	pool, err := pgstore.ConnectPool(ctx, cfg.DatabaseURL, policy, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	connector := pgstore.NewConnector(pool, pgstore.ConnectorOptions{
		Retry:        policy,
		QueryTimeout: cfg.QueryTimeout,
		Logger:       zerolog.Nop(),
	})

	report, err := reporting.NewGenerator(pgstore.NewTrendStore(connector)).
		LatestOnly(*latest).
		Generate(ctx, cityList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	if *format == "csv" || *format == "both" {
		writeFile(filepath.Join(*outputDir, "market_trends.csv"), reporting.RenderCSV(report.Rows))
	}
	if *format == "markdown" || *format == "both" {
		writeFile(filepath.Join(*outputDir, "MARKET_TRENDS.md"), reporting.RenderMarkdown(report))
	}

	fmt.Printf("Exported %d trend rows for %d cities\n", report.Summary.TotalRows, len(report.Cities))
}

func writeFile(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Generated: %s\n", path)
}
