package beep

import (
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

// Disable silences every cue for the rest of the process.
func Disable() { disabled.Store(true) }

func Disabled() bool { return disabled.Load() }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Match cue: two rising ticks
	matchLowFreq  = 880
	matchHighFreq = 1320
	matchVolume   = 0.45
	matchDecay    = 45

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// tone renders a mono decaying sine.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func silence(duration float64) []int16 {
	return make([]int16, int(float64(sampleRate)*duration))
}

func join(parts ...[]int16) []int16 {
	var out []int16
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type cues struct {
	start []int16
	match []int16
	err   []int16
}

// renderCues builds every cue; tail pads each one so short buffers drain fully.
func renderCues(tail float64) cues {
	return cues{
		start: join(tone(startFreq, 0.03, startVolume, startDecay), silence(tail)),
		match: join(
			tone(matchLowFreq, 0.05, matchVolume, matchDecay),
			tone(matchHighFreq, 0.07, matchVolume, matchDecay),
			silence(tail),
		),
		err: join(
			tone(errorFreq, 0.08, errorVolume, errorDecay),
			silence(0.05),
			tone(errorFreq, 0.08, errorVolume, errorDecay),
			silence(tail),
		),
	}
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
