package engine

import (
	"sync"
	"time"
)

// EventType names one subscribable engine event stream.
type EventType string

const (
	EventAnalysisComplete     EventType = "analysis-complete"
	EventPlanComplete         EventType = "plan-complete"
	EventOptimizationComplete EventType = "optimization-complete"
	EventResourceConstraint   EventType = "resource-constraint-warning"
	EventDependencyUpdated    EventType = "dependency-updated"
	EventTaskEventRecorded    EventType = "task-event-recorded"
	EventInvariantViolation   EventType = "invariant-violation"
)

// Event is one engine notification. Sequence numbers are monotonic per
// emitter so subscribers can replay in order.
type Event struct {
	Type      EventType      `json:"type"`
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Subscription is a cancellable handle to an event stream. Events arrive
// on C; Cancel stops delivery and closes the channel.
type Subscription struct {
	C chan Event

	id      uint64
	emitter *emitter
	once    sync.Once
}

// Cancel detaches the subscription from the emitter.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.emitter.remove(s.id)
		close(s.C)
	})
}

// emitter fans events out to subscribers. There is no global bus; each
// manager owns one emitter and revokes subscribers on Close.
type emitter struct {
	mu sync.Mutex

	nextSub uint64
	seq     uint64
	subs    map[uint64]*Subscription
	filters map[uint64]map[EventType]bool
	closed  bool
}

func newEmitter() *emitter {
	return &emitter{
		subs:    make(map[uint64]*Subscription),
		filters: make(map[uint64]map[EventType]bool),
	}
}

// Subscribe returns a handle receiving events of the given types; with no
// types, every event is delivered. The channel is buffered; a slow
// subscriber drops events rather than blocking the engine.
func (e *emitter) Subscribe(eventTypes ...EventType) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	sub := &Subscription{
		C:       make(chan Event, 64),
		id:      e.nextSub,
		emitter: e,
	}
	if e.closed {
		close(sub.C)
		sub.once.Do(func() {})
		return sub
	}

	e.subs[sub.id] = sub
	if len(eventTypes) > 0 {
		filter := make(map[EventType]bool, len(eventTypes))
		for _, t := range eventTypes {
			filter[t] = true
		}
		e.filters[sub.id] = filter
	}
	return sub
}

// Emit assigns the next sequence number and delivers a copy of the event
// to every matching subscriber.
func (e *emitter) Emit(eventType EventType, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.seq++
	event := Event{
		Type:      eventType,
		Sequence:  e.seq,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	for id, sub := range e.subs {
		if filter, filtered := e.filters[id]; filtered && !filter[eventType] {
			continue
		}
		// Subscribers receive their own copy of the payload.
		delivered := event
		if payload != nil {
			delivered.Payload = make(map[string]any, len(payload))
			for k, v := range payload {
				delivered.Payload[k] = v
			}
		}
		select {
		case sub.C <- delivered:
		default:
		}
	}
}

func (e *emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
	delete(e.filters, id)
}

// Close revokes every outstanding subscription.
func (e *emitter) Close() {
	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.subs = make(map[uint64]*Subscription)
	e.filters = make(map[uint64]map[EventType]bool)
	e.closed = true
	e.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.C) })
	}
}
