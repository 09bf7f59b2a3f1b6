package composables

import (
	"context"
	"sync"
)

type eventBufferKey struct{}

// EventBuffer holds domain events raised during a transaction so they can be
// delivered only after commit. Subscribers never observe rolled-back work.
type EventBuffer struct {
	mu     sync.Mutex
	events []interface{}
}

func (b *EventBuffer) Add(event interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Flush hands every buffered event to publish in order and empties the buffer.
func (b *EventBuffer) Flush(publish func(args ...interface{})) {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	for _, e := range events {
		publish(e)
	}
}

func WithEventBuffer(ctx context.Context) (context.Context, *EventBuffer) {
	buf := &EventBuffer{}
	return context.WithValue(ctx, eventBufferKey{}, buf), buf
}

// DeferEvent buffers the event when ctx carries an EventBuffer, reporting
// whether it did. Callers publish immediately when it returns false.
func DeferEvent(ctx context.Context, event interface{}) bool {
	buf, ok := ctx.Value(eventBufferKey{}).(*EventBuffer)
	if !ok {
		return false
	}
	buf.Add(event)
	return true
}
