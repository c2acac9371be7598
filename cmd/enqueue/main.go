// Command enqueue submits on-demand trend and report jobs to the broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"estate-analytics/internal/cache"
	"estate-analytics/internal/config"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/logger"
	"estate-analytics/internal/queue"
	"estate-analytics/internal/scheduler"
)

func main() {
	jobType := flag.String("type", "trend", "Job type: trend or report")
	city := flag.String("city", "", "City for a trend job")
	category := flag.String("category", "", "Property type for a trend job (empty = all)")
	listingID := flag.Int64("listing", 0, "Listing id for a report job")
	sweep := flag.Bool("sweep", false, "Enqueue a trend job for every configured (city, category)")
	flag.Parse()

	cfg, err := config.LoadBroker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	client, err := cache.NewRedisClient(cfg.BrokerURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to broker: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q := queue.NewRedisQueue(client, cfg.QueryTimeout, nil)

	if *sweep {
		pairs := cfg.Market.Pairs()
		n := scheduler.NewSweepJob(q, pairs, log).Sweep(ctx)
		fmt.Printf("Enqueued %d of %d trend jobs\n", n, len(pairs))
		if n < len(pairs) {
			os.Exit(1)
		}
		return
	}

	var job *domain.Job
	switch *jobType {
	case string(domain.JobTypeTrend):
		if *city == "" {
			fmt.Fprintln(os.Stderr, "Error: --city is required for trend jobs")
			os.Exit(2)
		}
		job, err = domain.NewTrendJob(*city, *category)
	case string(domain.JobTypeReport):
		if *listingID <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --listing must be a positive id for report jobs")
			os.Exit(2)
		}
		job, err = domain.NewReportJob(*listingID)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown job type %q (use trend or report)\n", *jobType)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building job: %v\n", err)
		os.Exit(1)
	}

	if err := q.Enqueue(ctx, job); err != nil {
		fmt.Fprintf(os.Stderr, "Error enqueuing job: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Enqueued %s job %s on %s\n", job.Type, job.ID, job.Queue)
}
