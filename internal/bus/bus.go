// Package bus provides a small in-process publish/subscribe hub with a fixed
// set of named topics. A Bus instance is constructor-injected wherever change
// notifications are needed, so tests get isolation via fresh instances.
package bus

import "sync"

// Topic names one of the event streams components may publish or observe.
type Topic string

const (
	TopicTodos     Topic = "todos.updated"
	TopicCalendar  Topic = "calendar.updated"
	TopicExpenses  Topic = "expenses.updated"
	TopicSettings  Topic = "settings.updated"
	TopicWellness  Topic = "wellness.updated"
	TopicSyncState Topic = "sync.state.changed"
	TopicStorage   Topic = "storage.changed"
)

// Handler receives the payload published on a topic.
type Handler func(payload any)

// Bus is a process-wide pub/sub hub. Handlers run synchronously on the
// publishing goroutine; a handler must not re-publish on its own topic or the
// emit recurses without bound.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Topic]map[int]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Topic]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns a function that
// removes it. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}
}

// Publish delivers payload to every handler subscribed to topic.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
}
