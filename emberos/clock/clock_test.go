package clock

import (
	"math"
	"testing"
)

func TestTickWrapOrdering(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Tick
		before bool
	}{
		{"plain", 10, 20, true},
		{"equal", 7, 7, false},
		{"reverse", 20, 10, false},
		{"across wrap", Tick(math.MaxUint32 - 5), 3, true},
		{"across wrap reverse", 3, Tick(math.MaxUint32 - 5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.before {
				t.Fatalf("%d.Before(%d) = %v, want %v", tt.a, tt.b, got, tt.before)
			}
		})
	}
}

func TestTickReachedAcrossOverflow(t *testing.T) {
	start := Tick(math.MaxUint32 - 2)
	deadline := start.Add(5)
	if deadline != 2 {
		t.Fatalf("deadline = %d, want 2", deadline)
	}
	for now, i := start, 0; i < 5; now, i = now+1, i+1 {
		if now.Reached(deadline) {
			t.Fatalf("Reached at %d (step %d), want not yet", now, i)
		}
	}
	if !deadline.Reached(deadline) {
		t.Fatal("deadline not reached at itself")
	}
	if got := deadline.Since(start); got != 5 {
		t.Fatalf("Since = %d, want 5", got)
	}
	if !deadline.After(start) {
		t.Fatal("deadline should be after start across wrap")
	}
}
