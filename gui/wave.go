//go:build gui

package gui

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"speechkit/keyword"
	"speechkit/wave"
)

const (
	waveCols = 96
	waveRows = 24
	cellSize = 5
)

// WaveWidget draws the waveform as a grid of rectangles, repainted at ~30 fps.
type WaveWidget struct {
	widget.BaseWidget
	mu            sync.Mutex
	phase         float64
	amplitude     float64
	background    keyword.Color
	hasBackground bool
	stopCh        chan struct{}
}

func NewWaveWidget() *WaveWidget {
	w := &WaveWidget{stopCh: make(chan struct{}), background: initialBackground}
	w.ExtendBaseWidget(w)
	go w.animate()
	return w
}

func (w *WaveWidget) SetAmplitude(a float64) {
	w.mu.Lock()
	w.amplitude = a
	w.mu.Unlock()
}

func (w *WaveWidget) SetBackground(c keyword.Color) {
	w.mu.Lock()
	w.background = c
	w.hasBackground = true
	w.mu.Unlock()
}

func (w *WaveWidget) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

func (w *WaveWidget) animate() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.phase += wave.PhaseShift
			w.mu.Unlock()
			fyne.Do(func() {
				w.Refresh()
			})
		}
	}
}

func (w *WaveWidget) MinSize() fyne.Size {
	return fyne.NewSize(waveCols*cellSize, waveRows*cellSize)
}

func (w *WaveWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &waveRenderer{wave: w}
	r.rects = make([][]*canvas.Rectangle, waveRows)
	for y := range r.rects {
		r.rects[y] = make([]*canvas.Rectangle, waveCols)
		for x := range r.rects[y] {
			r.rects[y][x] = canvas.NewRectangle(color.Transparent)
		}
	}
	return r
}

type waveRenderer struct {
	wave  *WaveWidget
	rects [][]*canvas.Rectangle
}

func (r *waveRenderer) Layout(size fyne.Size) {
	cellW := size.Width / waveCols
	cellH := size.Height / waveRows
	for y := range r.rects {
		for x, rect := range r.rects[y] {
			rect.Move(fyne.NewPos(float32(x)*cellW, float32(y)*cellH))
			rect.Resize(fyne.NewSize(cellW, cellH))
		}
	}
}

func (r *waveRenderer) MinSize() fyne.Size {
	return r.wave.MinSize()
}

func (r *waveRenderer) Refresh() {
	r.wave.mu.Lock()
	phase := r.wave.phase
	amplitude := r.wave.amplitude
	bg, hasBg := r.wave.background, r.wave.hasBackground
	r.wave.mu.Unlock()

	pixels := wave.Grid(waveCols, waveRows, phase, amplitude)
	palette := wave.Palette(wave.Foreground(bg, hasBg), bg)
	for y, row := range pixels {
		for x, v := range row {
			var c color.Color = color.Transparent
			if v != 0 {
				c = palette[v].RGBA()
			}
			if r.rects[y][x].FillColor != c {
				r.rects[y][x].FillColor = c
				r.rects[y][x].Refresh()
			}
		}
	}
}

func (r *waveRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, waveCols*waveRows)
	for _, row := range r.rects {
		for _, rect := range row {
			objs = append(objs, rect)
		}
	}
	return objs
}

func (r *waveRenderer) Destroy() {
	r.wave.Stop()
}
