// Package event carries the log and progress stream produced by a
// conversion batch. The consumer (a CLI front end, or anything else that
// wants to render the run) reads from the sink channels; the pipeline
// only writes.
package event

import (
	"fmt"
	"sync"
)

// Type classifies a log event. The label and color of each type are fixed
// and purely presentational.
type Type int

const (
	Overwriting Type = iota
	Converting
	Finished
	Error
	Warning
	Info
)

var labels = map[Type]string{
	Overwriting: "OVERWRITING",
	Converting:  "CONVERTING",
	Finished:    "FINISHED",
	Error:       "ERROR",
	Warning:     "WARNING",
	Info:        "INFO",
}

var colors = map[Type]string{
	Overwriting: "#BF00E1",
	Converting:  "#0000FF",
	Finished:    "#008000",
	Error:       "#FF0000",
	Warning:     "#FFA500",
	Info:        "#333333",
}

// Label returns the display name used as the log line prefix.
func (t Type) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return "INFO"
}

// Color returns the hex color associated with the type.
func (t Type) Color() string {
	if c, ok := colors[t]; ok {
		return c
	}
	return colors[Info]
}

func (t Type) String() string { return t.Label() }

// Types lists every event type in declaration order.
func Types() []Type {
	return []Type{Overwriting, Converting, Finished, Error, Warning, Info}
}

// Event is one entry of the batch log stream.
type Event struct {
	Type Type
	Text string
}

// Emitter is the write side of the sink. Components that only report
// events (the metadata transplanter, the per-file task) take an Emitter
// rather than the full sink.
type Emitter interface {
	Emit(t Type, format string, args ...any)
}

// Sink is the ordered event and progress stream of one batch run.
// Events and progress values are delivered on separate channels; both are
// closed exactly once when the batch has settled, which doubles as the
// batch-complete notification.
type Sink struct {
	events   chan Event
	progress chan int

	closeOnce sync.Once
}

// NewSink returns a sink whose channels hold up to buffer entries before
// emission blocks the pipeline.
func NewSink(buffer int) *Sink {
	return &Sink{
		events:   make(chan Event, buffer),
		progress: make(chan int, buffer),
	}
}

// Emit formats and queues one log event.
func (s *Sink) Emit(t Type, format string, args ...any) {
	s.events <- Event{Type: t, Text: fmt.Sprintf(format, args...)}
}

// SetProgress queues an overall progress percentage in [0,100].
func (s *Sink) SetProgress(p int) {
	s.progress <- p
}

// Events returns the read side of the log stream.
func (s *Sink) Events() <-chan Event { return s.events }

// Progress returns the read side of the progress stream.
func (s *Sink) Progress() <-chan int { return s.progress }

// Close signals batch completion. Safe to call more than once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
		close(s.progress)
	})
}
