package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"estate-analytics/internal/cache"
)

// HygieneJobName is the scheduler name of the cache hygiene pass.
const HygieneJobName = "cache-hygiene"

// HygieneRule gives every key matching Pattern a TTL when it has none.
type HygieneRule struct {
	Pattern string
	TTL     time.Duration
}

// DefaultHygieneRules covers every key family the engines write.
func DefaultHygieneRules() []HygieneRule {
	return []HygieneRule{
		{Pattern: cache.TrendPattern, TTL: cache.TrendTTL},
		{Pattern: cache.ReportPattern, TTL: cache.ReportTTL},
	}
}

// HygieneJob restores missing TTLs on cache entries.
type HygieneJob struct {
	store cache.Store
	rules []HygieneRule
	log   zerolog.Logger
}

// NewHygieneJob creates a hygiene pass. Nil rules mean DefaultHygieneRules.
func NewHygieneJob(store cache.Store, rules []HygieneRule, log zerolog.Logger) *HygieneJob {
	if rules == nil {
		rules = DefaultHygieneRules()
	}
	return &HygieneJob{
		store: store,
		rules: rules,
		log:   log.With().Str("job", HygieneJobName).Logger(),
	}
}

// Name returns the job name.
func (j *HygieneJob) Name() string {
	return HygieneJobName
}

// Run applies every rule. A failing rule does not stop the others.
func (j *HygieneJob) Run(ctx context.Context) error {
	var errs []error
	for _, rule := range j.rules {
		fixed, err := cache.EnsureTTL(ctx, j.store, rule.Pattern, rule.TTL)
		if err != nil {
			errs = append(errs, err)
		}
		if fixed > 0 {
			j.log.Warn().Str("pattern", rule.Pattern).Int("fixed", fixed).Dur("ttl", rule.TTL).Msg("cache entries without ttl")
		}
	}
	return errors.Join(errs...)
}
