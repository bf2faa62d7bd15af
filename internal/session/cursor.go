package session

// Cursor tracks the viewing position within the active set. Movement wraps in
// both directions.
type Cursor struct {
	pos int
	n   int
}

// Position returns the current index; it is meaningless when Len is 0.
func (c Cursor) Position() int {
	return c.pos
}

// Len returns the length of the set the cursor is over.
func (c Cursor) Len() int {
	return c.n
}

// Next advances one step, wrapping to the start.
func (c *Cursor) Next() {
	if c.n == 0 {
		return
	}
	c.pos = (c.pos + 1) % c.n
}

// Previous steps back one, wrapping to the end.
func (c *Cursor) Previous() {
	if c.n == 0 {
		return
	}
	c.pos = (c.pos - 1 + c.n) % c.n
}

// ResetTo places the cursor over a set of length n, keeping index when it is
// still in range and falling back to 0 otherwise.
func (c *Cursor) ResetTo(index, n int) {
	if n < 0 {
		n = 0
	}
	c.n = n
	if index < 0 || index >= n {
		index = 0
	}
	c.pos = index
}
