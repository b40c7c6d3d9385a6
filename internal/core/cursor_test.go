package core

import "testing"

func TestCursor_Bounds(t *testing.T) {
	c := NewCursor(3, 0)

	if c.Retreat() {
		t.Error("Retreat() at start should be a no-op")
	}
	if c.Index() != 0 {
		t.Errorf("Index() = %d, want 0", c.Index())
	}

	if !c.Advance() || !c.Advance() {
		t.Fatal("Advance() should move within range")
	}
	if c.Index() != 2 {
		t.Errorf("Index() = %d, want 2", c.Index())
	}
	if !c.AtEnd() {
		t.Error("AtEnd() = false, want true")
	}

	for range 3 {
		if c.Advance() {
			t.Error("Advance() at end should be a no-op")
		}
	}
	if c.Index() != 2 {
		t.Errorf("Index() after repeated Advance = %d, want 2", c.Index())
	}
}

func TestCursor_Seek(t *testing.T) {
	tests := []struct {
		name   string
		length int
		start  int
		seek   int
		want   int
	}{
		{"in range", 5, 0, 3, 3},
		{"negative clamps to first", 5, 2, -4, 0},
		{"past end clamps to last", 5, 0, 99, 4},
		{"empty list", 0, 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.length, tt.start)
			c.Seek(tt.seek)
			if c.Index() != tt.want {
				t.Errorf("Index() = %d, want %d", c.Index(), tt.want)
			}
		})
	}
}

func TestCursor_Empty(t *testing.T) {
	var c Cursor
	if !c.Empty() || !c.AtStart() || !c.AtEnd() {
		t.Error("zero Cursor should be empty and at both bounds")
	}
	if c.Advance() || c.Retreat() {
		t.Error("moving an empty cursor should be a no-op")
	}
}

func TestNewCursor_ClampsStart(t *testing.T) {
	if got := NewCursor(3, 10).Index(); got != 2 {
		t.Errorf("NewCursor(3, 10).Index() = %d, want 2", got)
	}
}
