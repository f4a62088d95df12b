package events

import "sync"

// Recorder is an append-only in-memory event log. It preserves the full
// emission order while still answering the latest-event query cheaply.
type Recorder struct {
	mu  sync.RWMutex
	log []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if evt == nil {
		return
	}
	r.mu.Lock()
	r.log = append(r.log, evt)
	r.mu.Unlock()
}

// Latest returns the most recently emitted event, or nil when none exists.
func (r *Recorder) Latest() Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.log) == 0 {
		return nil
	}
	return r.log[len(r.log)-1]
}

// All returns the emitted events in order.
func (r *Recorder) All() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.log))
	copy(out, r.log)
	return out
}

// Len reports the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}
