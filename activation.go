package imagine

// Activation is a scoped handle on one or more override chains. Enter
// installs them on their targets; Exit restores exactly the head each target
// had immediately before that entry. The interface is sealed: Imagined and
// Composite are the only implementations.
type Activation interface {
	// Enter makes the activation's chains active.
	Enter()
	// Exit unconditionally restores the heads recorded by the matching
	// Enter. Prefer With, which guarantees the pair on every exit path.
	Exit()
	// Combine returns a composite that enters the receiver then other and
	// exits them in exact reverse order.
	Combine(other Activation) Activation
	// Rebase returns a new activation whose chains are re-parented onto
	// whatever is active on their targets right now. The receiver and every
	// chain it references are untouched.
	Rebase() Activation

	appendLeaves(dst []*Imagined) []*Imagined // sealed
}

// Imagined is a single-target activation: one chain head to install on one
// wrapped callable. Each Enter records the head active at that moment, so
// one Imagined can be reused across any number of sequential scopes and
// always restores the right thing. Building further overrides from it never
// changes what it does.
type Imagined struct {
	fn   *Fn
	head *Scene
}

func newImagined(fn *Fn, parent *Scene, guard *Point, v Value) *Imagined {
	if v == nil {
		panic("imagine: nil substitute value; build one with FromGo")
	}
	return &Imagined{fn: fn, head: newScene(parent, guard, v)}
}

// Fn returns the wrapped callable this activation targets.
func (w *Imagined) Fn() *Fn { return w.fn }

// Head returns the chain head Enter installs.
func (w *Imagined) Head() *Scene { return w.head }

// At starts a further point builder chained onto this activation's head, so
// several overrides can be declared fluently before any of them activate.
func (w *Imagined) At(pos ...Value) *At {
	return &At{fn: w.fn, base: w.head, point: P(pos...)}
}

// Imagine chains a universal override on top of this activation's head.
func (w *Imagined) Imagine(v Value) *Imagined {
	return newImagined(w.fn, w.head, nil, v)
}

// Enter records the target's current head and installs this one.
func (w *Imagined) Enter() { w.fn.enter(w.head) }

// Exit restores the head recorded by the matching Enter. Exiting out of
// order is a caller contract violation: the release still happens and is
// logged, the stack is never silently repaired.
func (w *Imagined) Exit() { w.fn.exit(w.head) }

// Combine makes a composite of the receiver followed by other.
func (w *Imagined) Combine(other Activation) Activation {
	return &Composite{components: []Activation{w, other}}
}

// Rebase returns an activation carrying this chain re-parented onto the
// target's currently active chain: its overrides then apply on top of the
// live ones instead of replacing them. With nothing active, rebasing is the
// identity and returns the receiver.
func (w *Imagined) Rebase() Activation {
	base := w.fn.cur.active()
	if base == nil {
		return w
	}
	// Re-link root-most first: content and order stay identical, only the
	// ultimate ancestry changes. Structural sharing keeps this cheap.
	var stack []*Scene
	for s := w.head; s != nil; s = s.parent {
		stack = append(stack, s)
	}
	head := base
	for i := len(stack) - 1; i >= 0; i-- {
		head = stack[i].withParent(head)
	}
	return &Imagined{fn: w.fn, head: head}
}

func (w *Imagined) appendLeaves(dst []*Imagined) []*Imagined {
	return append(dst, w)
}
