package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(mustTestLogger(t))
	key := uuid.NewString()

	sub := bus.Subscribe(key)
	defer bus.Unsubscribe(key, sub)

	bus.Publish(key, EventLessonPlanned, map[string]any{"objective_index": 0})
	bus.Publish(key, EventLessonWritten, map[string]any{"objective_index": 0})

	first := recvEvent(t, sub.C, time.Second)
	second := recvEvent(t, sub.C, time.Second)
	if first.Name != EventLessonPlanned {
		t.Fatalf("first event: want=%s got=%s", EventLessonPlanned, first.Name)
	}
	if second.Name != EventLessonWritten {
		t.Fatalf("second event: want=%s got=%s", EventLessonWritten, second.Name)
	}
}

func TestBusPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus(mustTestLogger(t))

	// Must not block or panic.
	bus.Publish(uuid.NewString(), EventGenerationComplete, map[string]any{"lesson_count": 3})
}

func TestBusDoesNotLeakAcrossKeys(t *testing.T) {
	bus := NewBus(mustTestLogger(t))
	keyA, keyB := uuid.NewString(), uuid.NewString()

	subA := bus.Subscribe(keyA)
	defer bus.Unsubscribe(keyA, subA)

	bus.Publish(keyB, EventLessonPlanned, nil)

	select {
	case ev := <-subA.C:
		t.Fatalf("subscriber for %s received event %s published to %s", keyA, ev.Name, keyB)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(mustTestLogger(t))
	key := uuid.NewString()

	sub := bus.Subscribe(key)
	defer bus.Unsubscribe(key, sub)

	// Nobody drains; the publisher must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(sub.C)+10; i++ {
			bus.Publish(key, EventLessonWritten, map[string]any{"objective_index": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on full subscriber buffer")
	}

	if got := len(sub.C); got != cap(sub.C) {
		t.Fatalf("buffered events: want=%d got=%d", cap(sub.C), got)
	}
}

func TestBusUnsubscribeRemovesKey(t *testing.T) {
	bus := NewBus(mustTestLogger(t))
	key := uuid.NewString()

	sub := bus.Subscribe(key)
	if got := bus.SubscriberCount(key); got != 1 {
		t.Fatalf("subscriber count: want=1 got=%d", got)
	}
	bus.Unsubscribe(key, sub)
	if got := bus.SubscriberCount(key); got != 0 {
		t.Fatalf("subscriber count after unsubscribe: want=0 got=%d", got)
	}
}
