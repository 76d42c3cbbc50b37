package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// HandlerFunc executes one job. The context carries the job's timeout and
// is cancelled when it elapses, so handlers and their store calls should
// thread it through. progress reports completion percentage (0-100).
type HandlerFunc func(ctx context.Context, job Job, progress func(int)) (any, error)

// QueueStatus is a read-only snapshot of the scheduler pools.
type QueueStatus struct {
	Queued        int  `json:"queued"`
	Processing    int  `json:"processing"`
	Completed     int  `json:"completed"`
	Failed        int  `json:"failed"`
	MaxConcurrent int  `json:"maxConcurrent"`
	Capacity      int  `json:"capacity"`
	Running       bool `json:"running"`
}

// Stats are the scheduler's lifetime counters.
type Stats struct {
	TotalCompleted    int64             `json:"totalCompleted"`
	TotalFailed       int64             `json:"totalFailed"`
	TotalRetries      int64             `json:"totalRetries"`
	TotalCancelled    int64             `json:"totalCancelled"`
	AvgProcessingTime time.Duration     `json:"avgProcessingTime"`
	PerType           map[JobType]int64 `json:"perType"`
}

// Scheduler is the in-process priority job scheduler. One polling loop
// pulls eligible jobs off the queue and executes them on goroutines,
// bounded by the configured concurrency ceiling.
type Scheduler struct {
	cfg      config.Scheduler
	logger   *zap.Logger
	metrics  *observability.Collector
	notifier *Notifier
	validate *validator.Validate

	mu         sync.Mutex
	queue      *jobQueue
	processing map[string]*Job
	completed  map[string]*Job
	failed     map[string]*Job
	// insertion order of the history maps, oldest first
	completedOrder []string
	failedOrder    []string
	handlers       map[JobType]HandlerFunc

	totalCompleted int64
	totalFailed    int64
	totalRetries   int64
	totalCancelled int64
	processedCount int64
	avgProcessing  time.Duration
	perType        map[JobType]int64

	running  bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	loopDone chan struct{}
	wg       sync.WaitGroup
}

// New creates a stopped scheduler. Callers register handlers, then Start.
func New(cfg config.Scheduler, notifier *Notifier, logger *zap.Logger, metrics *observability.Collector) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewNotifier(logger)
	}
	return &Scheduler{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		notifier:   notifier,
		validate:   validator.New(),
		queue:      newJobQueue(cfg.QueueCapacity),
		processing: make(map[string]*Job),
		completed:  make(map[string]*Job),
		failed:     make(map[string]*Job),
		handlers:   make(map[JobType]HandlerFunc),
		perType:    make(map[JobType]int64),
	}
}

// Notifier returns the scheduler's event side channel.
func (s *Scheduler) Notifier() *Notifier {
	return s.notifier
}

// RegisterHandler binds a job type to its handler. Must be called before
// jobs of that type are executed.
func (s *Scheduler) RegisterHandler(jobType JobType, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

// QueueJob validates a submission, assigns defaults and inserts the job in
// priority order. Returns the job ID synchronously. A full queue is a
// capacity error surfaced to the caller, never a silent drop.
func (s *Scheduler) QueueJob(spec JobSpec) (string, error) {
	if err := s.validate.Struct(spec); err != nil {
		return "", appErrors.NewValidation(fmt.Sprintf("invalid job spec: %v", err))
	}

	payload, err := decodePayload(JobType(spec.Type), spec.Data)
	if err != nil {
		return "", err
	}
	if err := s.validate.Struct(payload); err != nil {
		return "", appErrors.NewValidation(fmt.Sprintf("invalid payload: %v", err))
	}

	now := time.Now()
	job := &Job{
		ID:           uuid.New().String(),
		Type:         JobType(spec.Type),
		Payload:      payload,
		Priority:     spec.Priority,
		MaxAttempts:  spec.MaxAttempts,
		Timeout:      time.Duration(spec.TimeoutMS) * time.Millisecond,
		CreatedAt:    now,
		ScheduledFor: now,
		Status:       StatusQueued,
	}
	if job.Priority == 0 {
		job.Priority = 5
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = s.cfg.DefaultMaxAttempts
	}
	if job.Timeout == 0 {
		job.Timeout = s.cfg.DefaultTimeout
	}
	if spec.ScheduledFor != nil {
		job.ScheduledFor = *spec.ScheduledFor
	}

	s.mu.Lock()
	if s.queue.full() {
		s.mu.Unlock()
		return "", appErrors.NewCapacity(fmt.Sprintf("job queue at capacity (%d)", s.cfg.QueueCapacity))
	}
	s.queue.insert(job)
	depth := s.queue.len()
	snap := job.snapshot()
	s.mu.Unlock()

	s.metrics.SetQueueDepth(depth)
	s.notifier.Emit(Event{Type: EventJobQueued, Job: snap, Time: time.Now()})

	s.logger.Debug("Job queued",
		zap.String("jobID", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("priority", job.Priority),
	)
	return job.ID, nil
}

// Start launches the processing loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	if _, exists := s.handlers[JobTypeCleanup]; !exists {
		s.handlers[JobTypeCleanup] = s.cleanupHandler
	}
	s.mu.Unlock()

	go s.run()
	s.logger.Info("Scheduler started",
		zap.Int("maxConcurrent", s.cfg.MaxConcurrent),
		zap.Duration("pollInterval", s.cfg.PollInterval),
	)
}

// Stop halts the loop, cancels in-flight job contexts and waits for
// handlers to return, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.loopDone
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return appErrors.NewTimeout("scheduler shutdown timed out", ctx.Err())
	}
}

// run is the processing loop: poll, dispatch up to the concurrency
// ceiling, sleep, repeat. It also self-schedules the periodic cleanup job.
func (s *Scheduler) run() {
	defer close(s.loopDone)

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	s.dispatch()
	for {
		select {
		case <-s.stop:
			return
		case <-poll.C:
			s.dispatch()
		case <-cleanup.C:
			s.enqueueCleanup()
		}
	}
}

// dispatch starts every eligible job the concurrency ceiling allows.
// Starting a job never blocks the loop.
func (s *Scheduler) dispatch() {
	now := time.Now()
	type launch struct {
		job  *Job
		snap Job
	}
	var launches []launch

	s.mu.Lock()
	for len(s.processing) < s.cfg.MaxConcurrent {
		job := s.queue.popEligible(now)
		if job == nil {
			break
		}
		job.Status = StatusProcessing
		job.Attempts++
		startedAt := time.Now()
		job.StartedAt = &startedAt
		s.processing[job.ID] = job
		launches = append(launches, launch{job: job, snap: job.snapshot()})
	}
	depth := s.queue.len()
	s.mu.Unlock()

	s.metrics.SetQueueDepth(depth)
	// The started event goes out before the goroutine launches so that a
	// fast handler cannot deliver its completion first.
	for _, l := range launches {
		s.notifier.Emit(Event{Type: EventJobStarted, Job: l.snap, Time: time.Now()})
		s.wg.Add(1)
		go s.execute(l.job, l.snap)
	}
}

// execute runs one job under its timeout context and finalizes it.
func (s *Scheduler) execute(job *Job, snap Job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.baseCtx, snap.Timeout)
	defer cancel()

	s.mu.Lock()
	handler := s.handlers[snap.Type]
	s.mu.Unlock()

	var (
		result any
		err    error
	)
	if handler == nil {
		err = appErrors.NewInternal(fmt.Sprintf("no handler registered for job type %q", snap.Type), nil)
	} else {
		result, err = s.runHandler(ctx, handler, snap)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = appErrors.NewTimeout(fmt.Sprintf("job timed out after %s", snap.Timeout), err)
		}
	}

	duration := time.Since(*snap.StartedAt)
	if err == nil {
		s.finalizeSuccess(job, result, duration)
	} else {
		s.finalizeFailure(job, err, duration)
	}
}

// runHandler isolates handler panics so a bad handler cannot take down the
// worker; a panic becomes a job failure.
func (s *Scheduler) runHandler(ctx context.Context, handler HandlerFunc, snap Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = appErrors.NewInternal(fmt.Sprintf("job handler panicked: %v", r), nil)
		}
	}()
	return handler(ctx, snap, func(p int) { s.setProgress(snap.ID, p) })
}

func (s *Scheduler) finalizeSuccess(job *Job, result any, duration time.Duration) {
	s.mu.Lock()
	delete(s.processing, job.ID)
	job.Status = StatusCompleted
	job.Progress = 100
	job.Result = result
	job.Error = ""
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	s.addHistory(s.completed, &s.completedOrder, job)

	s.totalCompleted++
	s.processedCount++
	s.avgProcessing += (duration - s.avgProcessing) / time.Duration(s.processedCount)
	s.perType[job.Type]++
	snap := job.snapshot()
	s.mu.Unlock()

	s.metrics.RecordJob(string(job.Type), "completed", duration)
	s.notifier.Emit(Event{Type: EventJobCompleted, Job: snap, Time: time.Now()})
	s.logger.Info("Job completed",
		zap.String("jobID", snap.ID),
		zap.String("type", string(snap.Type)),
		zap.Duration("duration", duration),
	)
}

func (s *Scheduler) finalizeFailure(job *Job, jobErr error, duration time.Duration) {
	s.mu.Lock()
	delete(s.processing, job.ID)
	job.Error = jobErr.Error()

	if job.Attempts < job.MaxAttempts {
		job.Status = StatusRetrying
		retrySnap := job.snapshot()

		// Exponential backoff: baseDelay * 2^(attempts-1).
		delay := s.cfg.BaseRetryDelay * time.Duration(1<<(job.Attempts-1))
		job.ScheduledFor = time.Now().Add(delay)
		job.Status = StatusQueued
		// Retries re-enter priority order; capacity applies to new
		// submissions only, so a retry is never dropped.
		s.queue.insert(job)
		s.totalRetries++
		depth := s.queue.len()
		s.mu.Unlock()

		s.metrics.RecordRetry(string(job.Type))
		s.metrics.SetQueueDepth(depth)
		s.notifier.Emit(Event{Type: EventJobRetry, Job: retrySnap, Time: time.Now()})
		s.logger.Warn("Job failed, retrying",
			zap.String("jobID", retrySnap.ID),
			zap.String("type", string(retrySnap.Type)),
			zap.Int("attempt", retrySnap.Attempts),
			zap.Int("maxAttempts", retrySnap.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(jobErr),
		)
		return
	}

	job.Status = StatusFailed
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	s.addHistory(s.failed, &s.failedOrder, job)
	s.totalFailed++
	s.perType[job.Type]++
	snap := job.snapshot()
	s.mu.Unlock()

	s.metrics.RecordJob(string(job.Type), "failed", duration)
	s.notifier.Emit(Event{Type: EventJobFailed, Job: snap, Time: time.Now()})
	s.logger.Error("Job failed permanently",
		zap.String("jobID", snap.ID),
		zap.String("type", string(snap.Type)),
		zap.Int("attempts", snap.Attempts),
		zap.Error(jobErr),
	)
}

// setProgress updates a processing job's progress and emits jobProgress.
func (s *Scheduler) setProgress(id string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	s.mu.Lock()
	job, exists := s.processing[id]
	if !exists {
		s.mu.Unlock()
		return
	}
	job.Progress = progress
	snap := job.snapshot()
	s.mu.Unlock()

	s.notifier.Emit(Event{Type: EventJobProgress, Job: snap, Time: time.Now()})
}

// CancelJob removes a job from the queue if it has not started executing.
// Returns whether cancellation succeeded; a processing job is never
// interrupted.
func (s *Scheduler) CancelJob(id string) bool {
	s.mu.Lock()
	job := s.queue.remove(id)
	if job == nil {
		s.mu.Unlock()
		return false
	}
	job.Status = StatusCancelled
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	s.addHistory(s.failed, &s.failedOrder, job)
	s.totalCancelled++
	depth := s.queue.len()
	snap := job.snapshot()
	s.mu.Unlock()

	s.metrics.SetQueueDepth(depth)
	s.notifier.Emit(Event{Type: EventJobCancelled, Job: snap, Time: time.Now()})
	return true
}

// GetJob returns a snapshot of the job with the given ID from any pool.
func (s *Scheduler) GetJob(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.processing[id]; ok {
		return job.snapshot(), true
	}
	if job := s.queue.find(id); job != nil {
		return job.snapshot(), true
	}
	if job, ok := s.completed[id]; ok {
		return job.snapshot(), true
	}
	if job, ok := s.failed[id]; ok {
		return job.snapshot(), true
	}
	return Job{}, false
}

// QueueStatus returns a snapshot of pool sizes.
func (s *Scheduler) QueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueStatus{
		Queued:        s.queue.len(),
		Processing:    len(s.processing),
		Completed:     len(s.completed),
		Failed:        len(s.failed),
		MaxConcurrent: s.cfg.MaxConcurrent,
		Capacity:      s.cfg.QueueCapacity,
		Running:       s.running,
	}
}

// Stats returns the scheduler's lifetime counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	perType := make(map[JobType]int64, len(s.perType))
	for t, n := range s.perType {
		perType[t] = n
	}
	return Stats{
		TotalCompleted:    s.totalCompleted,
		TotalFailed:       s.totalFailed,
		TotalRetries:      s.totalRetries,
		TotalCancelled:    s.totalCancelled,
		AvgProcessingTime: s.avgProcessing,
		PerType:           perType,
	}
}

// addHistory appends a job to a bounded history pool, evicting the oldest
// entry beyond the configured limit. Must be called with the lock held.
func (s *Scheduler) addHistory(pool map[string]*Job, order *[]string, job *Job) {
	pool[job.ID] = job
	*order = append(*order, job.ID)
	for len(*order) > s.cfg.HistoryLimit {
		oldest := (*order)[0]
		*order = (*order)[1:]
		delete(pool, oldest)
	}
}

// purgeHistory removes terminal jobs older than the retention window.
func (s *Scheduler) purgeHistory(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	purged += purgePool(s.completed, &s.completedOrder, cutoff)
	purged += purgePool(s.failed, &s.failedOrder, cutoff)
	return purged
}

func purgePool(pool map[string]*Job, order *[]string, cutoff time.Time) int {
	kept := (*order)[:0]
	purged := 0
	for _, id := range *order {
		job := pool[id]
		if job != nil && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(pool, id)
			purged++
			continue
		}
		kept = append(kept, id)
	}
	*order = kept
	return purged
}

// cleanupHandler is the scheduler's own maintenance job.
func (s *Scheduler) cleanupHandler(ctx context.Context, job Job, progress func(int)) (any, error) {
	payload, ok := job.Payload.(*CleanupPayload)
	if !ok {
		return nil, appErrors.NewInternal("cleanup job carried unexpected payload", nil)
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = s.cfg.CleanupRetention
	}
	purged := s.purgeHistory(olderThan)
	progress(100)
	return map[string]any{"purged": purged}, nil
}

// enqueueCleanup self-schedules the low-priority history purge.
func (s *Scheduler) enqueueCleanup() {
	data, _ := json.Marshal(CleanupPayload{OlderThan: s.cfg.CleanupRetention})
	_, err := s.QueueJob(JobSpec{
		Type:     string(JobTypeCleanup),
		Data:     data,
		Priority: 9,
	})
	if err != nil {
		s.logger.Warn("Failed to self-schedule cleanup job", zap.Error(err))
	}
}
