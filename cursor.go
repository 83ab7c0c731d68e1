package imagine

import "slices"

// cursor tracks which chain is in effect for one wrapped callable. heads is
// a stack: the last element is the active head, and each earlier element is
// the head that was active before a still-open activation entered. Appended
// on enter, truncated on exit; empty means no chain is active.
//
// The stack doubles as the activation history, which is what look-back views
// slice.
type cursor struct {
	heads []*Scene
}

func (c *cursor) active() *Scene {
	if len(c.heads) == 0 {
		return nil
	}
	return c.heads[len(c.heads)-1]
}

func (c *cursor) push(head *Scene) {
	c.heads = append(c.heads, head)
}

// pop removes and returns the active head. Popping with nothing active is
// the same misuse as unlocking an unlocked mutex and panics the same way.
func (c *cursor) pop() *Scene {
	if len(c.heads) == 0 {
		panic("imagine: exit of an activation that was never entered")
	}
	head := c.heads[len(c.heads)-1]
	c.heads = c.heads[:len(c.heads)-1]
	return head
}

func (c *cursor) depth() int { return len(c.heads) }

// back returns a detached copy of the stack with the most recent n entries
// dropped. Dropping more than exists leaves the empty stack.
func (c *cursor) back(n int) *cursor {
	keep := len(c.heads) - n
	if keep < 0 {
		keep = 0
	}
	return &cursor{heads: slices.Clone(c.heads[:keep])}
}
