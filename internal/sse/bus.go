package sse

import (
	"strings"
	"sync"

	"github.com/yungbote/learnloop-backend/internal/logger"
)

// Event names published by the generation pipelines and relayed verbatim to
// stream clients.
const (
	EventLessonPlanned        = "lesson_planned"
	EventLessonWritten        = "lesson_written"
	EventActivityCreated      = "activity_created"
	EventGenerationError      = "generation_error"
	EventGenerationComplete   = "generation_complete"
	EventGeneratingAssessment = "generating_assessment"
	EventAssessmentComplete   = "assessment_complete"
	EventAssessmentError      = "assessment_error"
)

type Event struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data,omitempty"`
}

// Subscriber is one connected stream client's mailbox. The channel is
// bounded; a publisher never blocks on a slow consumer.
type Subscriber struct {
	C chan Event
}

// Bus fans generation events out to the subscribers of a resource key.
// Delivery is best-effort and at-most-once: events for keys with no
// subscribers are discarded, and a full mailbox drops the event for that
// subscriber only. Clients recover missed state by re-reading persisted
// rows, not by replay.
type Bus struct {
	mu          sync.RWMutex
	log         *logger.Logger
	bufferSize  int
	subscribers map[string]map[*Subscriber]bool
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		log:         log.With("component", "SSEBus"),
		bufferSize:  32,
		subscribers: make(map[string]map[*Subscriber]bool),
	}
}

func (b *Bus) Subscribe(key string) *Subscriber {
	sub := &Subscriber{C: make(chan Event, b.bufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()

	key = strings.TrimSpace(key)
	if key == "" {
		return sub
	}
	subs, ok := b.subscribers[key]
	if !ok {
		subs = make(map[*Subscriber]bool)
		b.subscribers[key] = subs
	}
	subs[sub] = true

	b.log.Debug("subscriber attached", "key", key, "count", len(subs))
	return sub
}

func (b *Bus) Unsubscribe(key string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subscribers, key)
	}
	b.log.Debug("subscriber detached", "key", key, "remaining", len(subs))
}

func (b *Bus) Publish(key, event string, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	msg := Event{Name: event, Data: data}
	for sub := range subs {
		select {
		case sub.C <- msg:
		default:
			b.log.Warn("dropping event; subscriber buffer full", "key", key, "event", event)
		}
	}
}

// SubscriberCount is used by tests and the healthcheck payload.
func (b *Bus) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[key])
}
