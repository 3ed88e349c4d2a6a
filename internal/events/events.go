// Package events is the one-way log channel from the backend to whoever is
// listening: the workflow controller, the websocket stream and the CLI.
//
// Publishing never blocks. A subscriber whose buffer is full misses lines;
// the channel carries diagnostics only and no request is correlated with it.
package events

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"licensebridge/internal/infrastructure"
)

// Event names on the wire
const (
	NameLogMessage = "log_message"
	NameStatus     = "status"
)

// Level is the severity prefix of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Event is one pushed message. For log_message events Payload is the
// formatted "[LEVEL] message" line; status events carry Data instead.
type Event struct {
	Name    string    `json:"event"`
	Level   Level     `json:"level,omitempty"`
	Payload string    `json:"payload,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// FormatLine renders a log line the way the backend always has.
func FormatLine(level Level, message string) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(level)), message)
}

// Publisher is what backend components need to emit log lines.
type Publisher interface {
	Publish(level Level, message string)
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	onDrop func()
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithDropHook registers a callback run whenever a line is dropped.
func WithDropHook(fn func()) Option {
	return func(b *Bus) { b.onDrop = fn }
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: infrastructure.WithComponent(logger, "events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish emits a log_message event.
func (b *Bus) Publish(level Level, message string) {
	b.Emit(Event{
		Name:    NameLogMessage,
		Level:   level,
		Payload: FormatLine(level, message),
	})
}

// Emit delivers ev to every subscriber without blocking.
func (b *Bus) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber",
				slog.String("event", ev.Name),
				slog.String("subscriber", sub.name))
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Subscribe registers a listener with the given buffer size. Subscribing to
// a closed bus returns an already-closed subscription.
func (b *Bus) Subscribe(name string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{
		name: name,
		ch:   make(chan Event, buffer),
		bus:  b,
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.done = true
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// SubscriberCount reports the live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.closeLocked()
	}
	b.subs = nil
}

// Subscription receives events on C until Close is called or the bus shuts down.
type Subscription struct {
	C <-chan Event

	name string
	ch   chan Event
	bus  *Bus
	done bool
}

// Close unsubscribes; C is closed afterwards. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.done {
		return
	}
	delete(s.bus.subs, s)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
