package notify

import (
	"log"
	"sync"
	"time"
)

// Severity classifies a notification for the UI.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Sink receives user-facing notifications. Every terminal workflow state
// emits exactly one notification through a single Sink.
type Sink interface {
	Notify(message string, severity Severity)
}

// LogSink writes notifications to the process log.
type LogSink struct{}

// Notify logs the message with its severity.
func (LogSink) Notify(message string, severity Severity) {
	log.Printf("notify [%s]: %s", severity, message)
}

// Notification is a recorded toast with its arrival time.
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Recorder keeps a bounded in-memory history so the control API can hand
// pending toasts to the UI.
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewRecorder creates a recorder keeping at most limit notifications.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 32
	}
	return &Recorder{limit: limit}
}

// Notify appends the notification, dropping the oldest past the limit.
func (r *Recorder) Notify(message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Message: message, Severity: severity, At: time.Now()})
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
}

// Drain returns all recorded notifications and clears the history.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// Tee fans a notification out to several sinks.
type Tee []Sink

// Notify forwards to every sink.
func (t Tee) Notify(message string, severity Severity) {
	for _, s := range t {
		s.Notify(message, severity)
	}
}
