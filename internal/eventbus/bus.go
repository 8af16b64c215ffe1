// Package eventbus fans engine state changes out to subscribers (MQTT
// notifier, API layer) through a bounded worker pool.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType names a category of engine state change.
type EventType string

const (
	// EventTypePhase fires when the recorded circadian phase changes.
	EventTypePhase EventType = "phase"
	// EventTypeEffect fires when the active effect changes; an empty effect
	// id means no effect is active.
	EventTypeEffect EventType = "effect"
	// EventTypeSchedule fires when a wake or sleep schedule entry triggers.
	EventTypeSchedule EventType = "schedule"
)

// Pool sizing when the config leaves it unset.
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event carries one state change and its payload.
type Event struct {
	Type EventType
	Data map[string]interface{}
}

// Handler consumes events for one subscription.
type Handler func(Event)

// task pairs an event with one handler invocation.
type task struct {
	event   Event
	handler Handler
}

// Bus routes events to subscribed handlers. Delivery is asynchronous and
// best-effort: a full queue drops rather than blocks the publisher, since a
// slow notifier must never stall the tick loop.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue chan task
	wg    sync.WaitGroup

	// closing is closed before the queue so publishers racing a shutdown
	// observe it without a lock.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a bus with the default pool sizing.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus and starts its worker pool.
func NewWithConfig(workerCount, queueSize int) *Bus {
	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan task, queueSize),
		closing:  make(chan struct{}),
	}

	b.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	for t := range b.queue {
		b.invoke(id, t)
	}
}

// invoke runs one handler, containing panics so a bad subscriber cannot take
// a worker down with it.
func (b *Bus) invoke(workerID int, t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(t.event.Type)).
				Int("worker", workerID).
				Msg("Event handler panicked")
		}
	}()
	t.handler(t.event)
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues the event for every subscriber of its type. Never blocks:
// events are dropped when the queue is full or the bus is closing.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		select {
		case <-b.closing:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		case b.queue <- task{event: event, handler: handler}:
		default:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus queue full, dropping event")
		}
	}
}

// Close drains the pool: publishers are signalled first, then the queue is
// closed and workers are awaited until ctx expires.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	close(b.queue)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
