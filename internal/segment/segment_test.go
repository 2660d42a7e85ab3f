package segment

import (
	"math"
	"testing"
)

func TestBounds(t *testing.T) {
	tests := []struct {
		name      string
		total     float64
		count     int
		index     int
		wantStart float64
		wantEnd   float64
	}{
		{"first of five", 300, 5, 0, 0, 60},
		{"middle of five", 300, 5, 2, 120, 180},
		{"last of five", 300, 5, 4, 240, 300},
		{"index clamped high", 300, 5, 9, 240, 300},
		{"index clamped low", 300, 5, -1, 0, 60},
		{"zero count is one segment", 90, 0, 0, 0, 90},
		{"fractional width", 100, 3, 1, 100.0 / 3, 200.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Bounds(tt.total, tt.count, tt.index)
			if math.Abs(w.Start-tt.wantStart) > 1e-9 {
				t.Errorf("Start = %v, want %v", w.Start, tt.wantStart)
			}
			if math.Abs(w.End-tt.wantEnd) > 1e-9 {
				t.Errorf("End = %v, want %v", w.End, tt.wantEnd)
			}
		})
	}
}

func TestAll_ContiguousAndNonOverlapping(t *testing.T) {
	for _, total := range []float64{60, 300, 317.5, 1} {
		windows := All(total, DefaultCount)
		if len(windows) != DefaultCount {
			t.Fatalf("len = %d, want %d", len(windows), DefaultCount)
		}
		if windows[0].Start != 0 {
			t.Errorf("total %v: first Start = %v, want 0", total, windows[0].Start)
		}
		for i := 1; i < len(windows); i++ {
			if windows[i].Start != windows[i-1].End {
				t.Errorf("total %v: window %d starts at %v, previous ends at %v", total, i, windows[i].Start, windows[i-1].End)
			}
			if windows[i].Width() <= 0 {
				t.Errorf("total %v: window %d has width %v", total, i, windows[i].Width())
			}
		}
		if math.Abs(windows[len(windows)-1].End-total) > 1e-9 {
			t.Errorf("total %v: last End = %v", total, windows[len(windows)-1].End)
		}
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Bounds(300, 5, 0)
	if !w.Contains(0) || !w.Contains(59.999) {
		t.Error("window 0 should contain [0, 60)")
	}
	if w.Contains(60) {
		t.Error("window 0 should not contain its end")
	}
}

func TestIndexAt(t *testing.T) {
	tests := []struct {
		t    float64
		want int
	}{
		{-5, 0}, {0, 0}, {59, 0}, {60, 1}, {239.9, 3}, {240, 4}, {300, 4}, {400, 4},
	}
	for _, tt := range tests {
		if got := IndexAt(300, 5, tt.t); got != tt.want {
			t.Errorf("IndexAt(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestLast(t *testing.T) {
	if Last(5) != 4 {
		t.Errorf("Last(5) = %d, want 4", Last(5))
	}
	if Last(0) != 0 {
		t.Errorf("Last(0) = %d, want 0", Last(0))
	}
}
