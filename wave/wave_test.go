package wave

import (
	"math"
	"testing"

	"speechkit/keyword"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, IdleAmplitude},
		{0.005, IdleAmplitude},
		{math.NaN(), IdleAmplitude},
		{0.5, 0.5},
		{1, 1},
	}
	for _, tt := range tests {
		if got := Level(tt.in); got != tt.want {
			t.Errorf("Level(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOffsetEnvelope(t *testing.T) {
	const width = 41
	for i := 0; i < Waves; i++ {
		if got := Offset(i, 0, width, 0.3, 1); math.Abs(got) > 1e-9 {
			t.Errorf("wave %d left edge = %v, want 0", i, got)
		}
		if got := Offset(i, width-1, width, 0.3, 1); math.Abs(got) > 1e-9 {
			t.Errorf("wave %d right edge = %v, want 0", i, got)
		}
		for x := 0; x < width; x++ {
			if got := Offset(i, x, width, 1.1, 1); math.Abs(got) > 1 {
				t.Fatalf("wave %d x=%d offset %v exceeds 1", i, x, got)
			}
		}
	}
}

func TestOffsetFollowsAmplitude(t *testing.T) {
	const width = 41
	peak := func(amplitude float64) float64 {
		var m float64
		for x := 0; x < width; x++ {
			m = math.Max(m, math.Abs(Offset(0, x, width, 0, amplitude)))
		}
		return m
	}
	quiet, loud := peak(0.1), peak(0.8)
	if loud <= quiet {
		t.Errorf("peak(0.8) = %v, want more than peak(0.1) = %v", loud, quiet)
	}
	if peak(0) != peak(IdleAmplitude) {
		t.Error("silence should draw at idle amplitude")
	}
}

func TestGrid(t *testing.T) {
	g := Grid(40, 11, 0, 1)
	if len(g) != 11 || len(g[0]) != 40 {
		t.Fatalf("grid size = %dx%d", len(g[0]), len(g))
	}
	for x := 0; x < 40; x++ {
		drawn := false
		for y := range g {
			if g[y][x] != 0 {
				drawn = true
			}
		}
		if !drawn {
			t.Errorf("column %d is empty", x)
		}
	}
	// Waves start and end on the midline.
	if g[5][0] != 1 || g[5][39] != 1 {
		t.Errorf("primary wave not on midline at edges: %d %d", g[5][0], g[5][39])
	}

	if g := Grid(0, 0, 0, 1); len(g) != 0 {
		t.Errorf("empty grid has %d rows", len(g))
	}
}

func TestGridIdleIsFlat(t *testing.T) {
	g := Grid(30, 9, 0.7, 0)
	for y, row := range g {
		for x, v := range row {
			if v != 0 && y != 4 {
				t.Fatalf("idle wave drawn off midline at (%d,%d)", x, y)
			}
		}
	}
}

func TestPalette(t *testing.T) {
	p := Palette(keyword.White, keyword.Black)
	if len(p) != Waves+1 {
		t.Fatalf("len = %d", len(p))
	}
	if p[0] != keyword.Black || p[1] != keyword.White {
		t.Errorf("palette ends = %v %v", p[0], p[1])
	}
	for i := 2; i < len(p); i++ {
		if p[i].R > p[i-1].R {
			t.Errorf("wave %d brighter than wave %d", i-1, i-2)
		}
	}
}

func TestForeground(t *testing.T) {
	if got := Foreground(keyword.Color{}, false); got != keyword.Green {
		t.Errorf("initial = %v", got)
	}
	if got := Foreground(keyword.Black, true); got != keyword.White {
		t.Errorf("on black = %v", got)
	}
	if got := Foreground(keyword.Green, true); got != keyword.Black {
		t.Errorf("on green = %v", got)
	}
}
