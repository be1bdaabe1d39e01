package main

import "time"

const (
	silenceTick      = 100 * time.Millisecond
	silenceWarnAfter = 8 * time.Second
	voiceLevel       = 0.02 // normalized amplitude counted as voice
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
)

// silenceMonitor keeps a sliding window of per-tick speech flags and warns when the
// share of speech ticks drops below speechMinRatio.
type silenceMonitor struct {
	window []bool
	ticks  int
	warned bool
}

func newSilenceMonitor() *silenceMonitor {
	return &silenceMonitor{window: make([]bool, int(silenceWarnAfter/silenceTick))}
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, len(m.window))
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[i] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%len(m.window)] = hasSpeech
	m.ticks++

	r := m.ratio()
	if m.ticks >= len(m.window) && r < speechMinRatio && !m.warned {
		m.warned = true
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	return SilenceNone
}

// noVoiceIndicator is implemented by front ends that can show a "no voice" hint.
type noVoiceIndicator interface {
	NoVoice(on bool)
}

// voiceFrontEnd watches the amplitude stream passing through to a front end and
// toggles its no-voice hint. SetAmplitude is only called from the controller
// goroutine.
type voiceFrontEnd struct {
	frontEnd
	indicator noVoiceIndicator
	monitor   *silenceMonitor

	perTick int
	samples int
	peak    float64
}

func newVoiceFrontEnd(fe frontEnd, meterInterval time.Duration) frontEnd {
	ind, ok := fe.(noVoiceIndicator)
	if !ok || meterInterval <= 0 {
		return fe
	}
	return &voiceFrontEnd{
		frontEnd:  fe,
		indicator: ind,
		monitor:   newSilenceMonitor(),
		perTick:   max(int(silenceTick/meterInterval), 1),
	}
}

func (v *voiceFrontEnd) SetAmplitude(a float64) {
	v.frontEnd.SetAmplitude(a)
	v.peak = max(v.peak, a)
	v.samples++
	if v.samples < v.perTick {
		return
	}
	ev := v.monitor.Tick(v.peak >= voiceLevel)
	v.samples, v.peak = 0, 0
	switch ev {
	case SilenceWarn:
		v.indicator.NoVoice(true)
	case SilenceWarnClear:
		v.indicator.NoVoice(false)
	}
}
