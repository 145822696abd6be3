// Package report collects per-unit outcomes of a run and renders them.
package report

import "sync"

// Sink is the minimal interface the planners depend on.
//
// Record must be inert:
//   - must not panic (implementations should guard themselves)
//   - must not return errors
//
// The caller must assume Record may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and guarantees inertness even if the sink is buggy.
// Panics from the sink are swallowed.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is a concurrency-safe in-memory collector.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Report builds a canonical Report from the recorded events. order is the
// unit discovery order.
func (r *Recorder) Report(runID, network string, order []string) Report {
	rep := Report{RunID: runID, Network: network, Events: r.Snapshot()}
	rep.Canonicalize(order)
	return rep
}
