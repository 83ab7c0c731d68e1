package imagine

// Scene is one override fact: an immutable node of a persistent, singly
// linked chain. parent is the scene beneath it (nil at the root), guard
// decides which calls it applies to (nil matches unconditionally), and value
// is the substitute result.
//
// Scenes are shared freely between chains. Extending a chain only prepends a
// new head, so nodes reachable from one head are never changed by building
// another, and no cycle can ever form.
type Scene struct {
	parent *Scene
	guard  *Point
	value  Value
}

func newScene(parent *Scene, guard *Point, value Value) *Scene {
	return &Scene{parent: parent, guard: guard, value: value}
}

// Parent returns the scene beneath this one, or nil at the chain root.
func (s *Scene) Parent() *Scene { return s.parent }

// Guard returns the scene's point guard. ok is false for a universal scene,
// which applies to every call.
func (s *Scene) Guard() (p Point, ok bool) {
	if s.guard == nil {
		return Point{}, false
	}
	return *s.guard, true
}

// Value returns the substitute result this scene binds.
func (s *Scene) Value() Value { return s.value }

// Len returns the number of scenes from this head to the root. Len of a nil
// head is 0.
func (s *Scene) Len() int {
	n := 0
	for cur := s; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// match reports whether this scene alone applies to the point; it does not
// walk the chain.
func (s *Scene) match(p Point) bool {
	return s.guard == nil || s.guard.Equal(p)
}

// withParent re-links the same fact onto a different base. The receiver is
// untouched; this is the unit step of rebasing.
func (s *Scene) withParent(parent *Scene) *Scene {
	return &Scene{parent: parent, guard: s.guard, value: s.value}
}
