package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names the discrete scheduler events external collaborators can
// subscribe to.
type EventType string

const (
	EventJobQueued    EventType = "jobQueued"
	EventJobStarted   EventType = "jobStarted"
	EventJobProgress  EventType = "jobProgress"
	EventJobCompleted EventType = "jobCompleted"
	EventJobRetry     EventType = "jobRetry"
	EventJobFailed    EventType = "jobFailed"
	EventJobCancelled EventType = "jobCancelled"
)

// Event carries the full job record at the time of emission.
type Event struct {
	Type EventType `json:"type"`
	Job  Job       `json:"job"`
	Time time.Time `json:"time"`
}

// Subscriber receives scheduler events. Delivery is synchronous and
// best-effort: subscriber panics are recovered and logged, never propagated
// into the scheduler.
type Subscriber func(Event)

// Notifier is the typed publish/subscribe side channel of the scheduler.
// Delivery order matches emission order; nothing is persisted.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	all         []Subscriber
	logger      *zap.Logger
}

// NewNotifier creates an empty notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		subscribers: make(map[EventType][]Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a callback for the given event types.
func (n *Notifier) Subscribe(types []EventType, fn Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range types {
		n.subscribers[t] = append(n.subscribers[t], fn)
	}
}

// SubscribeAll registers a callback for every event type.
func (n *Notifier) SubscribeAll(fn Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, fn)
}

// Emit delivers the event to all matching subscribers in registration
// order.
func (n *Notifier) Emit(event Event) {
	n.mu.RLock()
	targets := make([]Subscriber, 0, len(n.all)+len(n.subscribers[event.Type]))
	targets = append(targets, n.subscribers[event.Type]...)
	targets = append(targets, n.all...)
	n.mu.RUnlock()

	for _, fn := range targets {
		n.deliver(fn, event)
	}
}

func (n *Notifier) deliver(fn Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Event subscriber panicked",
				zap.String("eventType", string(event.Type)),
				zap.String("jobID", event.Job.ID),
				zap.Any("panic", r),
			)
		}
	}()
	fn(event)
}
