package interview

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const EventLogCapacity = 100

type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Event   string         `json:"event"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// EventLog keeps the most recent diagnostics of a session and mirrors each
// entry to the process logger.
type EventLog struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int

	clock    Clock
	logger   *logrus.Entry
	onAppend func(LogEntry)
}

func NewEventLog(capacity int, clock Clock, logger *logrus.Entry) *EventLog {
	if capacity <= 0 {
		capacity = EventLogCapacity
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EventLog{capacity: capacity, clock: clock, logger: logger}
}

// OnAppend registers a hook called after each entry is stored.
func (l *EventLog) OnAppend(f func(LogEntry)) {
	l.mu.Lock()
	l.onAppend = f
	l.mu.Unlock()
}

func (l *EventLog) Add(level logrus.Level, event, msg string, fields logrus.Fields) {
	e := LogEntry{
		Time:    l.clock.Now(),
		Level:   level.String(),
		Event:   event,
		Message: msg,
	}
	if len(fields) > 0 {
		e.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			e.Fields[k] = v
		}
	}

	l.mu.Lock()
	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
	hook := l.onAppend
	l.mu.Unlock()

	l.logger.WithFields(fields).WithField("event", event).Log(level, msg)
	if hook != nil {
		hook(e)
	}
}

func (l *EventLog) Info(event, msg string, fields logrus.Fields) {
	l.Add(logrus.InfoLevel, event, msg, fields)
}

func (l *EventLog) Warn(event, msg string, fields logrus.Fields) {
	l.Add(logrus.WarnLevel, event, msg, fields)
}

func (l *EventLog) Error(event, msg string, fields logrus.Fields) {
	l.Add(logrus.ErrorLevel, event, msg, fields)
}

func (l *EventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
