package imagine

// Composite is an ordered group of activations entered as one unit: leaves
// acquire in declared left-to-right order and release in exact mirror order,
// entering a sub-composite fully before moving to the next sibling.
// Combination is associative for ordering. Overlapping targets are allowed;
// the leaf entered last shadows earlier ones while active, per ordinary LIFO
// lookup, not specificity.
type Composite struct {
	components []Activation
}

// Enter enters every leaf, leftmost first.
func (c *Composite) Enter() {
	for _, leaf := range c.leaves() {
		leaf.Enter()
	}
}

// Exit exits every leaf in exact reverse entry order. Activations for the
// same target must release in the mirror of acquisition or the restored
// chain would be wrong.
func (c *Composite) Exit() {
	leaves := c.leaves()
	for i := len(leaves) - 1; i >= 0; i-- {
		leaves[i].Exit()
	}
}

// Combine appends other after this group.
func (c *Composite) Combine(other Activation) Activation {
	return &Composite{components: []Activation{c, other}}
}

// Rebase rebases every leaf, in declared order, onto its target's currently
// active chain, returning a flat composite of the results. Per-leaf
// semantics are those of Imagined.Rebase.
func (c *Composite) Rebase() Activation {
	leaves := c.leaves()
	rebased := make([]Activation, len(leaves))
	for i, leaf := range leaves {
		rebased[i] = leaf.Rebase()
	}
	return &Composite{components: rebased}
}

func (c *Composite) leaves() []*Imagined {
	return c.appendLeaves(nil)
}

func (c *Composite) appendLeaves(dst []*Imagined) []*Imagined {
	for _, comp := range c.components {
		dst = comp.appendLeaves(dst)
	}
	return dst
}
