// Package status keeps a bounded, in-memory history of human-readable
// progress messages. Oldest messages are dropped first.
package status

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is the number of messages kept when none is configured
const DefaultCapacity = 100

// Message is one timestamped status line
type Message struct {
	Time time.Time `json:"time"`
	Text string    `json:"message"`
}

// String renders the message the way the dashboard shows it
func (m Message) String() string {
	return fmt.Sprintf("%s - %s", m.Time.Format("2006-01-02 15:04:05"), m.Text)
}

// Sink receives progress messages. A nil Sink is valid and discards everything.
type Sink func(msg string)

// Emit delivers msg to s, swallowing any panic raised by the sink
func (s Sink) Emit(msg string) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s(msg)
}

// Emitf formats and delivers a message
func (s Sink) Emitf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	s.Emit(fmt.Sprintf(format, args...))
}

// Log is a thread-safe ring of status messages
type Log struct {
	mu       sync.Mutex
	messages []Message
	capacity int
	now      func() time.Time
}

// NewLog creates a log keeping at most capacity messages
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		messages: make([]Message, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add appends a message, dropping the oldest one when full
func (l *Log) Add(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) == l.capacity {
		copy(l.messages, l.messages[1:])
		l.messages = l.messages[:l.capacity-1]
	}
	l.messages = append(l.messages, Message{Time: l.now(), Text: text})
}

// Messages returns a copy of the history, oldest first
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of stored messages
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Sink returns a callback that records into the log
func (l *Log) Sink() Sink {
	return l.Add
}
