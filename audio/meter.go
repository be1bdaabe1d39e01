package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// SilenceFloorDB is reported for digital silence and for channels with no data yet.
const SilenceFloorDB = -160.0

// Meter tracks the average power of the most recent buffer per channel. Process is
// called from the capture thread; Update and AveragePower from the reader's thread.
type Meter struct {
	channels int

	mu      sync.Mutex
	latest  []float64 // mean square per channel of the last processed buffer
	current []float64 // dB snapshot taken by Update
}

func NewMeter(channels int) *Meter {
	if channels < 1 {
		channels = 1
	}
	m := &Meter{
		channels: channels,
		latest:   make([]float64, channels),
		current:  make([]float64, channels),
	}
	for i := range m.current {
		m.current[i] = SilenceFloorDB
	}
	return m
}

// Process measures one buffer of interleaved little-endian int16 PCM.
func (m *Meter) Process(pcm []byte) {
	frameBytes := m.channels * BytesPerSample
	frames := len(pcm) / frameBytes
	if frames == 0 {
		return
	}
	sums := make([]float64, m.channels)
	for f := 0; f < frames; f++ {
		base := f * frameBytes
		for ch := 0; ch < m.channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(pcm[base+ch*BytesPerSample:]))
			v := float64(s) / 32768.0
			sums[ch] += v * v
		}
	}
	m.mu.Lock()
	for ch := range sums {
		m.latest[ch] = sums[ch] / float64(frames)
	}
	m.mu.Unlock()
}

// Update refreshes the values returned by AveragePower.
func (m *Meter) Update() {
	m.mu.Lock()
	for ch, ms := range m.latest {
		m.current[ch] = PowerDB(ms)
	}
	m.mu.Unlock()
}

// AveragePower returns the last updated power of channel ch in dBFS, in
// [SilenceFloorDB, 0]. Out-of-range channels report the floor.
func (m *Meter) AveragePower(ch int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 0 || ch >= len(m.current) {
		return SilenceFloorDB
	}
	return m.current[ch]
}

// PowerDB converts a mean-square level of full-scale normalized samples to dBFS.
func PowerDB(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return SilenceFloorDB
	}
	db := 10 * math.Log10(meanSquare)
	if db < SilenceFloorDB {
		return SilenceFloorDB
	}
	if db > 0 {
		return 0
	}
	return db
}
