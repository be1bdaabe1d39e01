// Package wave rasterizes the Siri-style waveform shared by the terminal and desktop
// front ends: a bundle of sine waves whose height follows the microphone amplitude.
package wave

import (
	"math"

	"speechkit/keyword"
)

const (
	Waves         = 5
	Frequency     = 1.5
	IdleAmplitude = 0.01
	PhaseShift    = -0.15
)

// Level is the amplitude actually drawn. Below IdleAmplitude the waves stay at rest
// height instead of collapsing into a flat line.
func Level(amplitude float64) float64 {
	if amplitude < IdleAmplitude || math.IsNaN(amplitude) {
		return IdleAmplitude
	}
	return amplitude
}

// Offset is the vertical displacement of wave i at column x, as a fraction of half the
// drawing height. The envelope pins both ends to the midline.
func Offset(i, x, width int, phase, amplitude float64) float64 {
	if width <= 1 {
		return 0
	}
	mid := float64(width-1) / 2
	scaling := 1 - math.Pow((float64(x)-mid)/mid, 2)
	progress := 1 - float64(i)/Waves
	normed := (1.5*progress - 0.5) * Level(amplitude)
	return scaling * normed * math.Sin(2*math.Pi*(float64(x)/float64(width-1))*Frequency+phase)
}

// Grid rasterizes the waves into height rows of width cells. A cell holds 0 when empty,
// otherwise 1 + the index of the wave drawn there; the primary wave wins overlaps.
func Grid(width, height int, phase, amplitude float64) [][]int {
	grid := make([][]int, height)
	for y := range grid {
		grid[y] = make([]int, width)
	}
	if width <= 0 || height <= 0 {
		return grid
	}
	half := float64(height-1) / 2
	for i := Waves - 1; i >= 0; i-- {
		prev := -1
		for x := 0; x < width; x++ {
			y := int(math.Round(half - Offset(i, x, width, phase, amplitude)*half))
			y = min(max(y, 0), height-1)
			lo, hi := y, y
			if prev >= 0 {
				lo, hi = min(prev, y), max(prev, y)
			}
			for row := lo; row <= hi; row++ {
				grid[row][x] = i + 1
			}
			prev = y
		}
	}
	return grid
}

// Alpha is the opacity of wave i; secondary waves fade toward the background.
func Alpha(i int) float64 {
	if i == 0 {
		return 1
	}
	progress := 1 - float64(i)/Waves
	return math.Min(1, progress/3*2+1.0/3)
}

// Palette returns Waves+1 colors indexed like Grid cells: bg at 0, then each wave
// blended from fg toward bg by its Alpha.
func Palette(fg, bg keyword.Color) []keyword.Color {
	p := make([]keyword.Color, Waves+1)
	p[0] = bg
	for i := 0; i < Waves; i++ {
		p[i+1] = blend(fg, bg, Alpha(i))
	}
	return p
}

// Foreground picks the wave color: green on the initial background, otherwise
// whichever of white or black reads against bg.
func Foreground(bg keyword.Color, hasBackground bool) keyword.Color {
	if !hasBackground {
		return keyword.Green
	}
	if bg.Dark() {
		return keyword.White
	}
	return keyword.Black
}

func blend(fg, bg keyword.Color, alpha float64) keyword.Color {
	mix := func(f, b uint8) uint8 {
		return uint8(math.Round(float64(b) + (float64(f)-float64(b))*alpha))
	}
	return keyword.Color{R: mix(fg.R, bg.R), G: mix(fg.G, bg.G), B: mix(fg.B, bg.B)}
}
