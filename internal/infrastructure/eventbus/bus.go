package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

// Event is anything that can be published on the bus.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the default Event implementation.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

func (e *BaseEvent) Type() string {
	return e.EventType
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTimestamp
}

func (e *BaseEvent) Payload() any {
	return e.EventPayload
}

// NewEvent creates a new event stamped with the current time.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler processes a published event.
type Handler func(ctx context.Context, event Event)

// Bus is the pub/sub interface the Intent Store and the hit/miss tracker
// publish on. Within this repository no component subscribes; app.Service
// calls the tracker and the domain learner directly after each Append.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType string, handler Handler)
	Unsubscribe(eventType string, handler Handler)
	Close()
}

// InMemoryBus is a buffered, asynchronous, panic-safe pub/sub bus.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus creates a buffered in-memory bus with the given channel depth.
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	bus := &InMemoryBus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish enqueues event for dispatch. Never blocks: if the buffer is full
// the event is dropped and logged, matching §5's "never let eventbus backpressure
// stall the Intent Store's write lock" requirement.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	select {
	case b.eventChan <- eventWrapper{ctx: ctx, event: event}:
		b.logger.Debug("Event published",
			zap.String("type", event.Type()),
		)
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type()),
		)
	}
}

// Subscribe registers handler for eventType. Use "*" to receive every event.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
	)
}

// Unsubscribe removes the most recently registered handler for eventType.
// Go has no function-pointer equality, so this removes by registration order
// rather than by matching the handler value.
func (b *InMemoryBus) Unsubscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	if len(handlers) == 0 {
		return
	}

	newHandlers := make([]Handler, 0, len(handlers))
	removed := false
	for i := len(handlers) - 1; i >= 0; i-- {
		if !removed {
			removed = true
			continue
		}
		newHandlers = append([]Handler{handlers[i]}, newHandlers...)
	}
	if !removed {
		return
	}

	if len(newHandlers) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = newHandlers
	}
}

// Close stops accepting new events and waits for the dispatch loop to drain.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("Event bus closed")
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0)

	if h, ok := b.handlers[event.Type()]; ok {
		handlers = append(handlers, h...)
	}

	if h, ok := b.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Handler panicked",
						zap.String("event_type", event.Type()),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}

// Event type constants for the events defined on the bus (SPEC_FULL.md
// §2.1).
const (
	EventTypeIntentAppended    = "intent_appended"
	EventTypePredictionLogged  = "prediction_logged"
	EventTypePredictionChecked = "prediction_checked"
	EventTypeLearningPending   = "learning_pending"
)

// IntentAppendedPayload is published by the Intent Store after every
// Append. No component subscribes to it; the tracker and the learner are
// invoked directly by app.Service.
type IntentAppendedPayload struct {
	Record entity.IntentRecord
}

// PredictionLoggedPayload is published when the predictor issues a new
// PredictionLog entry, before it has been evaluated against any future record.
type PredictionLoggedPayload struct {
	Entry entity.PredictionLogEntry
}

// PredictionCheckedPayload is published by Tracker.Check when a check
// credits at least one new hit. Misses and expiry publish nothing, and the
// tracker leaves Trigger and Expired unset.
type PredictionCheckedPayload struct {
	SessionID string
	Trigger   string
	Hit       bool
	Expired   bool
}

// LearningPendingPayload describes a learning-pending transition. The domain
// learner does not publish it: it sets learning_pending in its own state
// without emitting an event.
type LearningPendingPayload struct {
	SinceLastCycle int
	OrphanTags     int
}
