package scheduler

import (
	"sort"
	"time"
)

// jobQueue is the pending-job queue: a slice kept sorted by (priority,
// scheduledFor, insertion order). Lower priority numbers are more urgent;
// equal priorities are FIFO on scheduled time. Not goroutine-safe; the
// scheduler serializes access under its own mutex.
type jobQueue struct {
	jobs     []*Job
	capacity int
	nextSeq  uint64
}

func newJobQueue(capacity int) *jobQueue {
	return &jobQueue{capacity: capacity}
}

func (q *jobQueue) len() int {
	return len(q.jobs)
}

func (q *jobQueue) full() bool {
	return len(q.jobs) >= q.capacity
}

// insert places the job at its priority position. Insertion keeps the
// slice ordered, so dequeue is a linear scan for the first eligible entry.
func (q *jobQueue) insert(job *Job) {
	job.seq = q.nextSeq
	q.nextSeq++

	idx := sort.Search(len(q.jobs), func(i int) bool {
		return q.less(job, q.jobs[i])
	})
	q.jobs = append(q.jobs, nil)
	copy(q.jobs[idx+1:], q.jobs[idx:])
	q.jobs[idx] = job
}

func (q *jobQueue) less(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.ScheduledFor.Equal(b.ScheduledFor) {
		return a.ScheduledFor.Before(b.ScheduledFor)
	}
	return a.seq < b.seq
}

// popEligible removes and returns the most urgent job whose scheduled time
// has elapsed, or nil when no job is eligible. A delayed high-priority job
// never blocks an eligible lower-priority one.
func (q *jobQueue) popEligible(now time.Time) *Job {
	for i, job := range q.jobs {
		if job.ScheduledFor.After(now) {
			continue
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return job
	}
	return nil
}

// remove deletes a job by ID, returning it if present.
func (q *jobQueue) remove(id string) *Job {
	for i, job := range q.jobs {
		if job.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return job
		}
	}
	return nil
}

// find returns the queued job with the given ID, or nil.
func (q *jobQueue) find(id string) *Job {
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}
