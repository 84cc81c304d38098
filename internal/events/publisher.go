package events

import (
	"fmt"
	"sync"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine in subscription order; a slow handler slows
// publication but a panicking one is contained.
type Handler func(Event)

// Publisher is the boundary scan components publish through. Publication is
// best-effort: a failing subscriber never affects scan correctness.
type Publisher interface {
	// Publish delivers the event to every matching subscriber.
	Publish(event Event)

	// Subscribe registers a handler for one event type and returns an
	// unsubscribe function.
	Subscribe(eventType EventType, handler Handler) (unsubscribe func())

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler Handler) (unsubscribe func())
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is the in-process Publisher implementation.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	all    []subscription
	nextID uint64
	logger *logging.Logger
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[EventType][]subscription),
		logger: logging.Default().WithComponent("events"),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[eventType] = removeSubscription(b.subs[eventType], id)
	}
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSubscription(b.all, id)
	}
}

// Publish delivers the event to matching subscribers. Handler panics are
// recovered and logged so a misbehaving subscriber cannot abort a scan.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	typed := make([]subscription, len(b.subs[event.Kind()]))
	copy(typed, b.subs[event.Kind()])
	broadcast := make([]subscription, len(b.all))
	copy(broadcast, b.all)
	b.mu.RUnlock()

	metrics.IncrementEventsPublished(string(event.Kind()))
	metrics.GetGlobalMetrics().IncrementEventsPublished(string(event.Kind()))

	for _, sub := range typed {
		b.dispatch(sub, event)
	}
	for _, sub := range broadcast {
		b.dispatch(sub, event)
	}
}

// dispatch invokes one handler, containing panics.
func (b *Bus) dispatch(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Counter(metrics.MetricEventErrors, metrics.Labels{
				metrics.LabelEventType: string(event.Kind()),
			})
			metrics.GetGlobalMetrics().IncrementHandlerErrors(string(event.Kind()))
			b.logger.Error("Event handler panicked",
				"event_type", event.Kind(),
				"subscription_id", sub.id,
				"panic", fmt.Sprintf("%v", r))
		}
	}()
	sub.handler(event)
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Ensure that Bus implements the Publisher interface.
var _ Publisher = (*Bus)(nil)
