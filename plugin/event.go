package plugin

import "sync"

// EventBus carries domain events of one type between plugins. Publication
// is synchronous and sequential: Publish calls every subscriber in
// registration order before returning, and does not clone its listener
// list under a read lock that could race a concurrent Subscribe, mirroring
// the original implementation's mutex-guarded listener vector
// (original_source/alumet/src/plugin/event.rs).
type EventBus[E any] struct {
	mu        sync.Mutex
	listeners []func(E)
}

// NewEventBus returns an empty bus for events of type E.
func NewEventBus[E any]() *EventBus[E] {
	return &EventBus[E]{listeners: make([]func(E), 0, 4)}
}

// Subscribe registers listener to be called on every future Publish.
func (b *EventBus[E]) Subscribe(listener func(E)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Publish calls every subscribed listener with event, in subscription
// order.
func (b *EventBus[E]) Publish(event E) {
	b.mu.Lock()
	listeners := make([]func(E), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// NewConsumerMeasurement notifies that one or more new resource consumers
// (e.g. OS processes) have appeared and may now be worth measuring
// (supplements spec.md §4.G's event list with the original implementation's
// concrete built-in event, original_source/alumet/src/plugin/event.rs).
type NewConsumerMeasurement struct {
	Consumers []string
}

// EndConsumerMeasurement notifies that a previously observed resource
// consumer has gone away (e.g. a monitored process exited).
type EndConsumerMeasurement struct {
	Consumers []string
}
