package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/shared/testutil"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		level Level
		msg   string
		want  string
	}{
		{LevelInfo, "Found 2 device(s)", "[INFO] Found 2 device(s)"},
		{LevelError, "push failed", "[ERROR] push failed"},
		{Level("warn"), "retrying path", "[WARN] retrying path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLine(tt.level, tt.msg))
	}
}

func TestPublishFanOut(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	bus := NewBus(logger)
	defer bus.Close()

	a := bus.Subscribe("a", 4)
	b := bus.Subscribe("b", 4)

	bus.Publish(LevelInfo, "device code generated")

	for _, sub := range []*Subscription{a, b} {
		ev := receive(t, sub)
		assert.Equal(t, NameLogMessage, ev.Name)
		assert.Equal(t, "[INFO] device code generated", ev.Payload)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	var dropped atomic.Int32
	bus := NewBus(nil, WithDropHook(func() { dropped.Add(1) }))
	defer bus.Close()

	slow := bus.Subscribe("slow", 1)
	fast := bus.Subscribe("fast", 10)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(LevelInfo, "line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, int32(4), dropped.Load())
	assert.Len(t, fast.C, 5)
	assert.Len(t, slow.C, 1)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("x", 1)
	require.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())

	assert.NotPanics(t, func() { bus.Publish(LevelInfo, "after close") })
}

func TestBusClose(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("x", 1)

	bus.Close()
	bus.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.NotPanics(t, func() {
		bus.Publish(LevelError, "ignored")
		sub.Close()
	})

	late := bus.Subscribe("late", 1)
	_, ok = <-late.C
	assert.False(t, ok, "subscribing to a closed bus yields a closed subscription")
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(LevelDebug, "tick")
			}
		}()
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("churn", 2)
			sub.Close()
		}()
	}
	wg.Wait()
}

func TestEmitStatus(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()
	sub := bus.Subscribe("x", 1)

	bus.Emit(Event{Name: NameStatus, Data: map[string]any{"message": "Listing devices..."}})

	ev := receive(t, sub)
	assert.Equal(t, NameStatus, ev.Name)
	assert.Empty(t, ev.Payload)
}
