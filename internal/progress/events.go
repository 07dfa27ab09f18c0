// Package progress carries stage-transition events from the pipeline
// to whatever is supervising it: a human terminal, a machine-readable
// diagnostic stream, or both at once.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"bili-transcribe/internal/domain"
)

// Event is one stage transition. Events are append-only and ordered;
// exactly one running event precedes each terminal event per stage.
type Event struct {
	Stage   domain.Stage       `json:"stage"`
	Status  domain.StageStatus `json:"status"`
	Message string             `json:"message"`
	Data    map[string]any     `json:"data,omitempty"`
}

// Sink consumes stage events. Emit must not fail the pipeline.
type Sink interface {
	Emit(Event)
}

// ConsoleSink renders human-readable progress lines.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink writes human progress lines to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// Emit prints one line per event. Failures get their own prefix so
// they stand out in scrollback.
func (s *ConsoleSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Status {
	case domain.StageFailed:
		fmt.Fprintf(s.out, "[%s] failed: %s\n", event.Stage, event.Message)
	case domain.StageSkipped:
		fmt.Fprintf(s.out, "[%s] skipped: %s\n", event.Stage, event.Message)
	default:
		fmt.Fprintf(s.out, "[%s] %s\n", event.Stage, event.Message)
	}
}

// JSONSink writes one JSON object per event to the diagnostic stream.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a machine-readable event sink on w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Emit encodes the event as a single line. Encoding errors are dropped
// since the progress channel must never fail a run.
func (s *JSONSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

// Emit forwards the event to every sink.
func (s MultiSink) Emit(event Event) {
	for _, sink := range s {
		sink.Emit(event)
	}
}

// Recorder stores emitted events in order with a bounded history.
// The terminal summary and tests read it back.
type Recorder struct {
	mu        sync.RWMutex
	maxEvents int
	events    []Event
}

// NewRecorder creates a bounded in-memory event buffer.
func NewRecorder(maxEvents int) *Recorder {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Recorder{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Emit appends one event, trimming the oldest past the bound.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if len(r.events) > r.maxEvents {
		trim := len(r.events) - r.maxEvents
		r.events = append([]Event(nil), r.events[trim:]...)
	}
}

// Events returns a snapshot of recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}
