package telemetry

import (
	"strings"
	"sync"
)

// Event is a single report captured by RecorderAPI.
type Event struct {
	Kind   string
	ID     string
	Params []any
	Count  int64
}

// RecorderAPI keeps every report in memory so tests can assert on them.
type RecorderAPI struct {
	mutex  sync.Mutex
	events []Event
}

func NewRecorderAPI() *RecorderAPI {
	return &RecorderAPI{}
}

func (r *RecorderAPI) record(e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, e)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record(Event{Kind: "broken", ID: id, Params: params})
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record(Event{Kind: "warning", ID: id, Params: params})
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record(Event{Kind: "debug", ID: msg, Params: params})
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record(Event{Kind: "count", ID: id, Count: count})
}

// Events returns a copy of every captured event.
func (r *RecorderAPI) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Matching returns the events of the given kind whose id ends with suffix,
// scoped ids can be matched without repeating the namespace.
func (r *RecorderAPI) Matching(kind, suffix string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind && strings.HasSuffix(e.ID, suffix) {
			out = append(out, e)
		}
	}
	return out
}
