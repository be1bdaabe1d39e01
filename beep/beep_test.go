package beep

import "testing"

func TestRenderCues(t *testing.T) {
	c := renderCues(0.1)
	tail := int(sampleRate * 0.1)
	for name, samples := range map[string][]int16{"start": c.start, "match": c.match, "error": c.err} {
		if len(samples) <= tail {
			t.Errorf("%s cue has no audible part", name)
			continue
		}
		for i, s := range samples[len(samples)-tail:] {
			if s != 0 {
				t.Errorf("%s cue tail not silent at %d", name, i)
				break
			}
		}
	}
	if len(c.err) <= 2*int(sampleRate*0.08) {
		t.Error("error cue should contain two beeps")
	}
}

func TestToneDecays(t *testing.T) {
	samples := tone(startFreq, 0.1, 0.5, startDecay)
	peak := func(s []int16) int16 {
		var m int16
		for _, v := range s {
			if v < 0 {
				v = -v
			}
			m = max(m, v)
		}
		return m
	}
	head, tail := samples[:len(samples)/4], samples[3*len(samples)/4:]
	if peak(tail) >= peak(head) {
		t.Errorf("tone does not decay: head %d tail %d", peak(head), peak(tail))
	}
	volume := 0.5
	if peak(head) > int16(32767*volume)+1 {
		t.Errorf("tone exceeds volume: %d", peak(head))
	}
}

func TestToBytes(t *testing.T) {
	b := toBytes([]int16{1, -1, 0x1234})
	want := []byte{1, 0, 0xff, 0xff, 0x34, 0x12}
	if string(b) != string(want) {
		t.Errorf("toBytes = %v, want %v", b, want)
	}
}

func TestDisable(t *testing.T) {
	Disable()
	if !Disabled() {
		t.Fatal("expected disabled")
	}
	PlayStart()
	PlayMatch()
	PlayError()
}
