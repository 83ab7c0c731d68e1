package journal

import (
	"context"
	"time"

	"github.com/robertbuff/imagine"
)

// Event kinds. Every journal row is one of these.
const (
	KindCall  = "call"
	KindEnter = "enter"
	KindExit  = "exit"
)

// Event is one journal row: a resolved call or a scope transition on a
// wrapped callable. Point and Value hold canonical JSON text so rows are
// byte-comparable across runs and processes.
type Event struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Fn        string `json:"fn"`
	Point     string `json:"point,omitempty"`
	Value     string `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
	Source    string `json:"source,omitempty"`
	SceneHash string `json:"scene_hash,omitempty"`
	Depth     int    `json:"depth"`
}

// Session identifies one recorded what-if run.
type Session struct {
	Token         string    `json:"token"`
	StartedAt     time.Time `json:"started_at"`
	EngineVersion string    `json:"engine_version"`
	Label         string    `json:"label,omitempty"`
}

// NewSession stamps a session with the current engine version.
func NewSession(token, label string) Session {
	return Session{
		Token:         token,
		StartedAt:     time.Now().UTC(),
		EngineVersion: imagine.EngineVersion,
		Label:         label,
	}
}

// Recorder buffers engine activity as journal events, stamping each with the
// next tick of its own logical clock. It implements imagine.Observer; hand
// it to Wrap via imagine.WithObserver. Like the engine it observes, a
// Recorder expects a single logical thread.
type Recorder struct {
	clock  *Clock
	events []Event
}

// NewRecorder creates an empty recorder with a fresh clock, so the first
// event is always seq 1.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// Call records a resolved invocation.
func (r *Recorder) Call(ev imagine.CallEvent) {
	e := Event{
		Seq:       r.clock.Next(),
		Kind:      KindCall,
		Fn:        ev.Fn,
		Point:     mustCanonical(ev.Point.Object()),
		Source:    string(ev.Source),
		SceneHash: ev.SceneHash,
		Depth:     ev.Depth,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	} else {
		e.Value = mustCanonical(ev.Value)
	}
	r.events = append(r.events, e)
}

// Enter records a chain activation.
func (r *Recorder) Enter(ev imagine.ScopeEvent) {
	r.events = append(r.events, Event{
		Seq:       r.clock.Next(),
		Kind:      KindEnter,
		Fn:        ev.Fn,
		SceneHash: ev.SceneHash,
		Depth:     ev.Depth,
	})
}

// Exit records a chain release.
func (r *Recorder) Exit(ev imagine.ScopeEvent) {
	r.events = append(r.events, Event{
		Seq:       r.clock.Next(),
		Kind:      KindExit,
		Fn:        ev.Fn,
		SceneHash: ev.SceneHash,
		Depth:     ev.Depth,
	})
}

// Events returns a copy of everything recorded so far, in seq order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Flush persists the session record and everything recorded so far. Safe to
// call again after recording more; already-written rows are skipped.
func (r *Recorder) Flush(ctx context.Context, st *Store, sess Session) error {
	if err := st.WriteSession(ctx, sess); err != nil {
		return err
	}
	return st.WriteEvents(ctx, sess.Token, r.events)
}

// mustCanonical encodes a value built by the engine. The sealed value model
// keeps unmarshalable shapes out, so failure here is a programming error.
func mustCanonical(v imagine.Value) string {
	data, err := imagine.MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
