package encoder

import "time"

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format describes the PCM handed to an encoder.
type Format struct {
	SampleRate uint32
	Channels   uint32
}

type Encoder interface {
	// EncodeBlock takes interleaved samples, at most BlockSize frames.
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
	EncodeTime() time.Duration
}
