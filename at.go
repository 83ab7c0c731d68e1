package imagine

// At is the point builder: the first half of declaring an override. It
// freezes a candidate point against the chain that was active when it was
// requested; Imagine finalizes point and value into an activation. A builder
// may be kept and finalized several times; each Imagine snapshots the point
// as it stands.
type At struct {
	fn    *Fn
	base  *Scene
	point Point
}

// KW adds one keyword argument to the point and returns a new builder; the
// receiver is unchanged. A keyword set here is part of the point's identity:
// omitting it elsewhere addresses a different point.
func (b *At) KW(name string, v Value) *At {
	return &At{fn: b.fn, base: b.base, point: b.point.With(name, v)}
}

// Imagine binds the substitute result for the frozen point, producing an
// activation whose chain is the captured base plus one new scene. Purely
// constructive: nothing becomes active until Enter.
func (b *At) Imagine(v Value) *Imagined {
	guard := b.point.clone()
	return newImagined(b.fn, b.base, &guard, v)
}
