package types

import "testing"

func pos(line, col int) Position { return Position{Line: line, Column: col} }

func TestPositionBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want bool
	}{
		{"earlier line", pos(1, 5), pos(2, 0), true},
		{"same line earlier column", pos(3, 2), pos(3, 7), true},
		{"equal", pos(3, 2), pos(3, 2), false},
		{"later line", pos(4, 0), pos(3, 99), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Errorf("Before(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSpanContains(t *testing.T) {
	span := Span{Start: pos(2, 4), End: pos(2, 10)}

	if !span.Contains(pos(2, 4)) {
		t.Error("start position should be contained")
	}
	if span.Contains(pos(2, 10)) {
		t.Error("end position is exclusive")
	}
	if !span.Contains(pos(2, 9)) {
		t.Error("last covered column should be contained")
	}
	if span.Contains(pos(3, 4)) {
		t.Error("different line should not be contained")
	}
}

func TestSpanOverlaps(t *testing.T) {
	base := Span{Start: pos(1, 0), End: pos(1, 10)}

	tests := []struct {
		name  string
		other Span
		want  bool
	}{
		{"identical", base, true},
		{"adjacent after", Span{Start: pos(1, 10), End: pos(1, 20)}, false},
		{"adjacent before", Span{Start: pos(0, 0), End: pos(1, 0)}, false},
		{"partial", Span{Start: pos(1, 5), End: pos(1, 15)}, true},
		{"containing", Span{Start: pos(0, 0), End: pos(2, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Overlaps (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMethodKeyString(t *testing.T) {
	key := MethodKey{Class: "UserController", Method: "handle"}
	if key.String() != "UserController::handle" {
		t.Errorf("got %q", key.String())
	}
}
