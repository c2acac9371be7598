package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"estate-analytics/internal/config"
	"estate-analytics/internal/domain"
	"estate-analytics/internal/queue"
)

// SweepJobName is the scheduler name of the market sweep.
const SweepJobName = "sweep"

// SweepJob enqueues a trend job for every market pair. It never computes
// a trend itself.
type SweepJob struct {
	queue queue.Queue
	pairs []config.MarketPair
	log   zerolog.Logger
}

// NewSweepJob creates a sweep over pairs.
func NewSweepJob(q queue.Queue, pairs []config.MarketPair, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		queue: q,
		pairs: pairs,
		log:   log.With().Str("job", SweepJobName).Logger(),
	}
}

// Name returns the job name.
func (j *SweepJob) Name() string {
	return SweepJobName
}

// Run executes the sweep. It fails when any pair could not be enqueued.
func (j *SweepJob) Run(ctx context.Context) error {
	enqueued := j.Sweep(ctx)
	if enqueued < len(j.pairs) {
		return fmt.Errorf("sweep enqueued %d of %d trend jobs", enqueued, len(j.pairs))
	}
	return nil
}

// Sweep enqueues one trend job per pair onto the analytics queue and
// returns how many were enqueued. A failed pair is logged and skipped.
func (j *SweepJob) Sweep(ctx context.Context) int {
	enqueued := 0
	for _, p := range j.pairs {
		job, err := domain.NewTrendJob(p.City, p.Category)
		if err == nil {
			err = j.queue.Enqueue(ctx, job)
		}
		if err != nil {
			j.log.Error().Err(err).Str("city", p.City).Str("category", p.Category).Msg("enqueue trend job failed")
			continue
		}
		enqueued++
	}

	j.log.Info().Int("enqueued", enqueued).Int("pairs", len(j.pairs)).Msg("market sweep finished")
	return enqueued
}
