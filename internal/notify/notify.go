// Package notify delivers operator alerts. Sinks are fire-and-forget:
// a notification failure is logged and never propagates into workflow
// control flow.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"screenpilot/internal/logging"
)

// Event is one operator alert.
type Event struct {
	Subject  string
	Message  string
	Location string            // where in the workflow it happened
	Context  map[string]string // extra key/value detail
	Time     time.Time
}

// Sink receives events. Implementations must not block workflow
// execution on delivery problems.
type Sink interface {
	Notify(ev Event)
}

// Body renders the event as plain text for human consumption.
func (e Event) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", e.Message)
	if e.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", e.Location)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Details:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, e.Context[k])
		}
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "\nTime: %s\n", ts.Format(time.RFC3339))
	return b.String()
}

// LogSink writes events to the notify log category. Always available,
// used as the fallback when email is not configured.
type LogSink struct{}

// NewLogSink returns a log-only sink.
func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Notify(ev Event) {
	logging.Notify("ALERT %s: %s (location=%s)", ev.Subject, ev.Message, ev.Location)
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Notify(ev Event) {
	for _, s := range m {
		s.Notify(ev)
	}
}
