package imagine

import "log/slog"

// Body is the original computation behind a wrapped callable. It receives
// the call's point and produces the genuine result. The engine never
// inspects what a body does; its errors pass through unmodified.
type Body func(p Point) (Value, error)

// Fn is the adapter call sites hold instead of the original computation.
// Every invocation consults the active override chain first; with no chain,
// or no matching scene, the body runs untouched.
//
// An Fn owns its cursor exclusively and carries no internal locking: a
// single logical thread must drive enter/exit pairs for a given Fn at any
// time. Concurrent activation corrupts the restore discipline and is the
// caller's to prevent, by confinement or external locking.
type Fn struct {
	name     string
	body     Body
	cur      *cursor
	observer Observer
}

// Option configures a wrapped callable at Wrap time.
type Option func(*Fn)

// WithObserver routes call and scope events to obs. Recording lives
// entirely outside the engine; the default is no observer.
func WithObserver(obs Observer) Option {
	return func(f *Fn) { f.observer = obs }
}

// Wrap adapts body into a callable whose results can be overridden within
// delimited scopes. name labels the callable in logs, traces, and errors.
// A nil body panics: the engine replaces results, it cannot invent the
// computation.
func Wrap(name string, body Body, opts ...Option) *Fn {
	if body == nil {
		panic("imagine: Wrap called with nil body")
	}
	f := &Fn{name: name, body: body, cur: &cursor{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the label given at Wrap time.
func (f *Fn) Name() string { return f.name }

// Active returns the head of the chain currently in effect, nil when none.
func (f *Fn) Active() *Scene { return f.cur.active() }

// Depth returns the number of activations currently open on this callable.
func (f *Fn) Depth() int { return f.cur.depth() }

// Call invokes the callable at a positional-only point.
func (f *Fn) Call(pos ...Value) (Value, error) {
	return f.Invoke(P(pos...))
}

// Invoke resolves a call. The active chain is searched head to root and the
// first scene whose guard is absent or equal to p supplies the result;
// otherwise the body runs. A guard mismatch is not an error, it just falls
// through. Lookup never mutates the cursor.
func (f *Fn) Invoke(p Point) (Value, error) {
	for s := f.cur.active(); s != nil; s = s.parent {
		if s.match(p) {
			f.observeCall(p, s.value, nil, SourceOverride, s)
			return s.value, nil
		}
	}
	v, err := f.body(p)
	f.observeCall(p, v, err, SourceOriginal, nil)
	return v, err
}

// At captures a candidate point and returns a builder based on whatever
// chain is active right now; for a callable with no active chain the base
// is the empty chain. Purely constructive: nothing changes on the cursor
// until an activation built from the builder enters.
func (f *Fn) At(pos ...Value) *At {
	return &At{fn: f, base: f.cur.active(), point: P(pos...)}
}

// Imagine builds a universal override: v becomes the result for every call
// not shadowed by a more specific override pushed later. The new scene sits
// on top of the currently active chain.
func (f *Fn) Imagine(v Value) *Imagined {
	return newImagined(f, f.cur.active(), nil, v)
}

// Back returns the callable as it looked n activations ago: a view sharing
// the body and observer, holding its own copy of the truncated activation
// history. Back(0) is the receiver itself; going back further than the
// history reaches gives the no-chain view. Views are for reading: entering
// activations built from one only ever moves the view's own cursor.
func (f *Fn) Back(n int) *Fn {
	if n < 0 {
		panic("imagine: Back with negative count")
	}
	if n == 0 {
		return f
	}
	return &Fn{name: f.name, body: f.body, cur: f.cur.back(n), observer: f.observer}
}

func (f *Fn) observeCall(p Point, v Value, err error, src Source, matched *Scene) {
	if f.observer == nil {
		return
	}
	ev := CallEvent{Fn: f.name, Point: p, Value: v, Err: err, Source: src, Depth: f.cur.depth()}
	if matched != nil {
		ev.SceneHash = MustSceneHash(matched)
	}
	f.observer.Call(ev)
}

// enter and exit are driven by activations only.

func (f *Fn) enter(head *Scene) {
	f.cur.push(head)
	slog.Debug("override chain activated", "fn", f.name, "depth", f.cur.depth())
	if f.observer != nil {
		f.observer.Enter(ScopeEvent{Fn: f.name, SceneHash: MustSceneHash(head), Depth: f.cur.depth()})
	}
}

func (f *Fn) exit(expected *Scene) {
	popped := f.cur.pop()
	if popped != expected {
		// Caller contract violation: the pop is still the defined
		// transition, the stack is never searched or repaired.
		slog.Warn("out-of-order release: restored head does not match this activation",
			"fn", f.name, "depth", f.cur.depth())
	}
	slog.Debug("override chain released", "fn", f.name, "depth", f.cur.depth())
	if f.observer != nil {
		f.observer.Exit(ScopeEvent{Fn: f.name, SceneHash: MustSceneHash(popped), Depth: f.cur.depth()})
	}
}
