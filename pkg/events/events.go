package events

import (
	"sync"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// EventType tags what changed.
type EventType string

const (
	EventTaskPending  EventType = "task.pending"
	EventTaskRunning  EventType = "task.running"
	EventTaskFinished EventType = "task.finished"
	EventTaskError    EventType = "task.error"

	EventJobRegistered   EventType = "job.registered"
	EventJobUnregistered EventType = "job.unregistered"

	EventNamespaceRegistered   EventType = "namespace.registered"
	EventNamespaceUnregistered EventType = "namespace.unregistered"

	EventAcceptPaused  EventType = "accept.paused"
	EventAcceptResumed EventType = "accept.resumed"
)

// taskEventTypes maps a task's terminal/non-terminal status to its event
// type. Built once; TaskStateChanged indexes into it.
var taskEventTypes = map[types.TaskStatus]EventType{
	types.TaskPending:  EventTaskPending,
	types.TaskRunning:  EventTaskRunning,
	types.TaskFinished: EventTaskFinished,
	types.TaskError:    EventTaskError,
}

// Event is one state transition broadcast to subscribers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	TaskID    types.TaskID
	JobID     types.JobID
	Message   string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker distributes events to subscribers and implements
// pkg/task.EventSink, so a task.Manager can publish lifecycle
// transitions directly into the broker.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers. Non-blocking: a
// publisher never waits on a slow or stopped broker.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// broker queue full: drop the event rather than block the publisher
	}
}

// TaskStateChanged implements pkg/task.EventSink.
func (b *Broker) TaskStateChanged(id types.TaskID, status types.TaskStatus) {
	typ, ok := taskEventTypes[status]
	if !ok {
		return
	}
	b.Publish(&Event{Type: typ, TaskID: id})
}

// PublishJob publishes a job registry mutation.
func (b *Broker) PublishJob(typ EventType, jobID types.JobID) {
	b.Publish(&Event{Type: typ, JobID: jobID})
}

// PublishNamespace publishes a namespace registry mutation.
func (b *Broker) PublishNamespace(typ EventType, message string) {
	b.Publish(&Event{Type: typ, Message: message})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full, drop rather than block the broker
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
