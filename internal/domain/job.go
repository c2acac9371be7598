package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType selects the engine a job is routed to.
type JobType string

// Job types.
const (
	JobTypeTrend  JobType = "trend"
	JobTypeReport JobType = "report"
)

// Queue names consumed by the dispatcher.
const (
	QueueAnalytics  = "analytics"
	QueueReports    = "reports"
	QueueValuations = "valuations"
)

// AllQueues lists every queue in consumption priority order.
var AllQueues = []string{QueueAnalytics, QueueReports, QueueValuations}

// Job is the envelope carried by the queue transport.
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"job_type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// TrendPayload is the payload of a trend job. Category is optional.
type TrendPayload struct {
	City     string `json:"city"`
	Category string `json:"category,omitempty"`
}

// ReportPayload is the payload of a report job.
type ReportPayload struct {
	ListingID int64 `json:"listing_id"`
}

// NewTrendJob builds a trend job envelope for the analytics queue.
func NewTrendJob(city, category string) (*Job, error) {
	return newJob(JobTypeTrend, QueueAnalytics, TrendPayload{City: city, Category: category})
}

// NewReportJob builds a report job envelope for the reports queue.
func NewReportJob(listingID int64) (*Job, error) {
	return newJob(JobTypeReport, QueueReports, ReportPayload{ListingID: listingID})
}

func newJob(jobType JobType, queue string, payload any) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Queue:      queue,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// TrendPayload decodes the payload of a trend job.
func (j *Job) TrendPayload() (TrendPayload, error) {
	var p TrendPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode trend payload: %w", err)
	}
	if p.City == "" {
		return p, fmt.Errorf("trend payload: city is required")
	}
	return p, nil
}

// ReportPayload decodes the payload of a report job.
func (j *Job) ReportPayload() (ReportPayload, error) {
	var p ReportPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode report payload: %w", err)
	}
	if p.ListingID <= 0 {
		return p, fmt.Errorf("report payload: listing_id must be positive, got %d", p.ListingID)
	}
	return p, nil
}

// Validate checks the envelope fields without decoding the payload.
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeTrend, JobTypeReport:
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	switch j.Queue {
	case QueueAnalytics, QueueReports, QueueValuations:
	default:
		return fmt.Errorf("unknown queue %q", j.Queue)
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has empty payload", j.ID)
	}
	return nil
}
