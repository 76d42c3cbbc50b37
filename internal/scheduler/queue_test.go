package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedJob(id string, priority int, scheduledFor time.Time) *Job {
	return &Job{
		ID:           id,
		Type:         JobTypeAggregation,
		Priority:     priority,
		ScheduledFor: scheduledFor,
		Status:       StatusQueued,
	}
}

func TestQueuePriorityOrder(t *testing.T) {
	q := newJobQueue(10)
	now := time.Now()

	// Queue A(priority 1), B(priority 5), C(priority 1): dequeue order is
	// A, C, B because equal priorities are FIFO.
	q.insert(queuedJob("A", 1, now))
	q.insert(queuedJob("B", 5, now))
	q.insert(queuedJob("C", 1, now))

	var order []string
	for {
		job := q.popEligible(now)
		if job == nil {
			break
		}
		order = append(order, job.ID)
	}
	assert.Equal(t, []string{"A", "C", "B"}, order)
}

func TestQueueDelayedJobNotEligible(t *testing.T) {
	q := newJobQueue(10)
	now := time.Now()

	q.insert(queuedJob("delayed", 1, now.Add(time.Hour)))
	q.insert(queuedJob("ready", 5, now))

	// The delayed high-priority job must not block the eligible one.
	job := q.popEligible(now)
	require.NotNil(t, job)
	assert.Equal(t, "ready", job.ID)

	assert.Nil(t, q.popEligible(now))
	assert.Equal(t, 1, q.len())

	job = q.popEligible(now.Add(2 * time.Hour))
	require.NotNil(t, job)
	assert.Equal(t, "delayed", job.ID)
}

func TestQueueEqualScheduleFIFO(t *testing.T) {
	q := newJobQueue(10)
	now := time.Now()

	for _, id := range []string{"first", "second", "third"} {
		q.insert(queuedJob(id, 5, now))
	}

	assert.Equal(t, "first", q.popEligible(now).ID)
	assert.Equal(t, "second", q.popEligible(now).ID)
	assert.Equal(t, "third", q.popEligible(now).ID)
}

func TestQueueRemoveAndFind(t *testing.T) {
	q := newJobQueue(10)
	now := time.Now()
	q.insert(queuedJob("A", 1, now))
	q.insert(queuedJob("B", 2, now))

	assert.NotNil(t, q.find("B"))
	assert.Nil(t, q.find("missing"))

	removed := q.remove("A")
	require.NotNil(t, removed)
	assert.Equal(t, "A", removed.ID)
	assert.Nil(t, q.remove("A"))
	assert.Equal(t, 1, q.len())
}

func TestQueueFull(t *testing.T) {
	q := newJobQueue(2)
	now := time.Now()

	q.insert(queuedJob("A", 1, now))
	assert.False(t, q.full())
	q.insert(queuedJob("B", 1, now))
	assert.True(t, q.full())
}
