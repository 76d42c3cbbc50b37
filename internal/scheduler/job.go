// Package scheduler implements the in-process priority job scheduler: a
// capacity-bounded priority queue, a polling processing loop with bounded
// concurrency, exponential-backoff retries and typed event notifications.
package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// JobType enumerates the named job types the scheduler can execute.
type JobType string

const (
	JobTypeAggregation JobType = "aggregation"
	JobTypeCacheWarm   JobType = "cache_warming"
	JobTypeCleanup     JobType = "cleanup"
	JobTypeJourney     JobType = "journey_processing"
	JobTypeCompute     JobType = "analytics_compute"
)

// Status is the lifecycle state of a job.
//
// queued -> processing -> (completed | retrying -> queued | failed)
// cancelled is reachable from queued only.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Payload is the tagged union of per-type job payloads. Each job type
// carries a strongly typed payload struct dispatched via a type switch.
type Payload interface {
	isPayload()
}

// AggregationPayload requests computation of one aggregation window.
type AggregationPayload struct {
	SiteID    string    `json:"siteId" validate:"required"`
	Timeframe string    `json:"timeframe" validate:"required,oneof=hourly daily weekly monthly"`
	Timestamp time.Time `json:"timestamp"`
}

func (AggregationPayload) isPayload() {}

// CacheWarmPayload requests a cache warming pass for a site.
type CacheWarmPayload struct {
	SiteID string `json:"siteId" validate:"required"`
}

func (CacheWarmPayload) isPayload() {}

// CleanupPayload requests a purge of job history older than OlderThan.
type CleanupPayload struct {
	OlderThan time.Duration `json:"olderThan"`
}

func (CleanupPayload) isPayload() {}

// JourneyPayload requests journey metric recomputation over a site range.
type JourneyPayload struct {
	SiteID string    `json:"siteId" validate:"required"`
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
}

func (JourneyPayload) isPayload() {}

// ComputePayload requests a generic named analytics computation.
type ComputePayload struct {
	SiteID    string    `json:"siteId" validate:"required"`
	Metric    string    `json:"metric" validate:"required"`
	Timeframe string    `json:"timeframe" validate:"required,oneof=hourly daily weekly monthly"`
	Timestamp time.Time `json:"timestamp"`
}

func (ComputePayload) isPayload() {}

// decodePayload parses the opaque submission data into the typed payload
// for the job type. Unknown types are rejected.
func decodePayload(jobType JobType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	var payload Payload
	switch jobType {
	case JobTypeAggregation:
		payload = &AggregationPayload{}
	case JobTypeCacheWarm:
		payload = &CacheWarmPayload{}
	case JobTypeCleanup:
		payload = &CleanupPayload{}
	case JobTypeJourney:
		payload = &JourneyPayload{}
	case JobTypeCompute:
		payload = &ComputePayload{}
	default:
		return nil, appErrors.NewValidation(fmt.Sprintf("unknown job type %q", jobType))
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, appErrors.NewValidation(fmt.Sprintf("invalid payload for job type %q: %v", jobType, err))
	}
	return payload, nil
}

// JobSpec is the external job submission shape.
type JobSpec struct {
	Type         string          `json:"type" validate:"required"`
	Data         json.RawMessage `json:"data,omitempty"`
	Priority     int             `json:"priority,omitempty" validate:"omitempty,gte=1,lte=10"`
	MaxAttempts  int             `json:"maxAttempts,omitempty" validate:"omitempty,gte=1,lte=10"`
	TimeoutMS    int64           `json:"timeout,omitempty" validate:"omitempty,gt=0"`
	ScheduledFor *time.Time      `json:"scheduledFor,omitempty"`
}

// Job is one unit of deferred work, owned exclusively by the scheduler.
type Job struct {
	ID      string  `json:"id"`
	Type    JobType `json:"type"`
	Payload Payload `json:"payload"`

	// Priority is 1-10; lower is more urgent.
	Priority    int           `json:"priority"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"maxAttempts"`
	Timeout     time.Duration `json:"timeout"`

	CreatedAt    time.Time  `json:"createdAt"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0-100
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`

	// seq breaks FIFO ties among equal (priority, scheduledFor) pairs.
	seq uint64
}

// snapshot returns a value copy safe to hand to subscribers and callers.
func (j *Job) snapshot() Job {
	copied := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		copied.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		copied.CompletedAt = &t
	}
	return copied
}
