package core

// Cursor is a bounded position over an ordered list of known length.
// Moving past either end is a no-op rather than an error. The zero value is
// a cursor over an empty list.
type Cursor struct {
	length int
	index  int
}

// NewCursor returns a cursor over length items positioned at start,
// clamped into range.
func NewCursor(length, start int) *Cursor {
	c := &Cursor{length: max(length, 0)}
	c.Seek(start)
	return c
}

// Index returns the current position. It is 0 for an empty list.
func (c *Cursor) Index() int { return c.index }

// Len returns the number of items the cursor ranges over.
func (c *Cursor) Len() int { return c.length }

// Empty reports whether there is no current item.
func (c *Cursor) Empty() bool { return c.length == 0 }

// AtStart reports whether Retreat would be a no-op.
func (c *Cursor) AtStart() bool { return c.index == 0 }

// AtEnd reports whether Advance would be a no-op.
func (c *Cursor) AtEnd() bool { return c.length == 0 || c.index == c.length-1 }

// Advance moves to the next item and reports whether the index changed.
func (c *Cursor) Advance() bool {
	if c.AtEnd() {
		return false
	}
	c.index++
	return true
}

// Retreat moves to the previous item and reports whether the index changed.
func (c *Cursor) Retreat() bool {
	if c.AtStart() {
		return false
	}
	c.index--
	return true
}

// Seek moves to i, clamped into range, and reports whether the index changed.
func (c *Cursor) Seek(i int) bool {
	switch {
	case c.length == 0:
		i = 0
	case i < 0:
		i = 0
	case i >= c.length:
		i = c.length - 1
	}
	changed := i != c.index
	c.index = i
	return changed
}
