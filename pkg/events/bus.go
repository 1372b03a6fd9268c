package events

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber outbound queue depth
const DefaultBufferSize = 64

// Subscriber is one attached observer. Events arrive on Events() in
// publication order. The channel is closed when the subscriber is
// removed, either by Unsubscribe or because its queue overflowed.
type Subscriber struct {
	id string
	ch chan Event
}

// ID returns the subscriber's unique identifier
func (s *Subscriber) ID() string {
	return s.id
}

// Events returns the subscriber's receive channel
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Bus fans events out to any number of subscribers. Delivery is
// best-effort: a subscriber whose queue is full is dropped rather
// than stalling the publisher, and there is no replay of history.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	buffer int
	logger interface{ Debug(string, ...any) }
}

// NewBus creates a bus with the given per-subscriber buffer size.
// A size <= 0 uses DefaultBufferSize.
func NewBus(buffer int, logger interface{ Debug(string, ...any) }) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe attaches a new observer. The caller owns the handle and
// must call Unsubscribe when its connection closes.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, b.buffer),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("event subscriber attached", "id", sub.id)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to
// call for a subscriber already dropped by the bus.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
	b.mu.Unlock()

	if ok {
		b.logger.Debug("event subscriber detached", "id", sub.id)
	}
}

// Publish delivers the event to every currently attached subscriber.
// Subscribers that cannot keep up are removed; Publish never blocks.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	var stalled []*Subscriber
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			stalled = append(stalled, sub)
		}
	}
	for _, sub := range stalled {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
	b.mu.Unlock()

	for _, sub := range stalled {
		b.logger.Debug("event subscriber queue full, dropping", "id", sub.id)
	}
}

// SubscriberCount returns the number of attached subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
