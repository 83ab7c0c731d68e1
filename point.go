package imagine

import (
	"fmt"
	"slices"
	"strings"
)

// Point is a frozen location in a callable's input space: the positional and
// keyword arguments a guard compares against. Guard matching is exact
// structural equality on both parts; a keyword omitted at capture time is a
// different point from the same keyword supplied explicitly, even when the
// values agree.
type Point struct {
	Pos []Value
	KW  Object
}

// P builds a positional-only point. Nil elements panic: a nil Value can
// never compare equal to anything, so a guard holding one would silently
// match nothing.
func P(pos ...Value) Point {
	for i, v := range pos {
		if v == nil {
			panic(fmt.Sprintf("imagine: nil value at position %d; build one with FromGo", i))
		}
	}
	return Point{Pos: slices.Clone(pos)}
}

// With returns a copy of the point with one keyword argument set. The
// receiver is unchanged, so a point can be branched into several.
func (p Point) With(name string, v Value) Point {
	if v == nil {
		panic(fmt.Sprintf("imagine: nil value for keyword %q; build one with FromGo", name))
	}
	kw := make(Object, len(p.KW)+1)
	for k, existing := range p.KW {
		kw[k] = existing
	}
	kw[name] = v
	return Point{Pos: p.Pos, KW: kw}
}

// Equal reports whether two points denote the same location: equal
// positional values in order, and the same keyword set with equal values.
func (p Point) Equal(q Point) bool {
	if len(p.Pos) != len(q.Pos) || len(p.KW) != len(q.KW) {
		return false
	}
	for i := range p.Pos {
		if !Equal(p.Pos[i], q.Pos[i]) {
			return false
		}
	}
	for k, v := range p.KW {
		w, present := q.KW[k]
		if !present || !Equal(v, w) {
			return false
		}
	}
	return true
}

// String renders the point the way a call site would write it, e.g.
// (1, "pear", mode="fast"). Keywords print in canonical key order.
func (p Point) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range p.Pos {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatValue(v))
	}
	for i, k := range p.KW.SortedKeys() {
		if i > 0 || len(p.Pos) > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(p.KW[k]))
	}
	b.WriteByte(')')
	return b.String()
}

// Object lowers the point to a plain value, the form canonical encoding and
// hashing work on.
func (p Point) Object() Object {
	return Object{"pos": Array(p.Pos), "kw": p.KW}
}

// clone detaches the point from any slices or maps the caller still holds.
// Scenes store cloned points so later builder reuse cannot reach them.
func (p Point) clone() Point {
	q := Point{Pos: slices.Clone(p.Pos)}
	if p.KW != nil {
		q.KW = make(Object, len(p.KW))
		for k, v := range p.KW {
			q.KW[k] = v
		}
	}
	return q
}

func formatValue(v Value) string {
	data, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
