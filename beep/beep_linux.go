//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"speechkit/log"
)

var (
	sounds    cues
	soundOnce sync.Once
)

func initSound() {
	// PulseAudio needs a tail to fill its buffer before Drain returns
	sounds = renderCues(0.15)
}

func playSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("speechkit"))
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func play(pick func(cues) []int16) {
	if Disabled() {
		return
	}
	soundOnce.Do(initSound)
	go playSamples(pick(sounds))
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() { play(func(c cues) []int16 { return c.start }) }
func PlayMatch() { play(func(c cues) []int16 { return c.match }) }
func PlayError() { play(func(c cues) []int16 { return c.err }) }
