package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"speechkit/encoder"
)

type sink interface {
	Write(pcm []byte) error
	Close() error
}

type discardSink struct{}

func (discardSink) Write([]byte) error { return nil }
func (discardSink) Close() error       { return nil }

// flacSink buffers PCM into full encoder blocks and writes them to a file.
type flacSink struct {
	file     *os.File
	enc      *encoder.FlacEncoder
	channels int
	pending  []int16
}

func newSink(s Settings) (sink, error) {
	if s.Discards() {
		return discardSink{}, nil
	}
	f, err := os.Create(s.Destination)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	enc, err := encoder.NewFlac(f, encoder.Format{SampleRate: s.SampleRate, Channels: s.Channels}, s.Quality >= QualityHigh)
	if err != nil {
		f.Close()
		os.Remove(s.Destination)
		return nil, err
	}
	return &flacSink{file: f, enc: enc, channels: int(s.Channels)}, nil
}

func (f *flacSink) Write(pcm []byte) error {
	for i := 0; i+1 < len(pcm); i += 2 {
		f.pending = append(f.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	block := encoder.BlockSize * f.channels
	for len(f.pending) >= block {
		if err := f.enc.EncodeBlock(f.pending[:block]); err != nil {
			return err
		}
		f.pending = f.pending[block:]
	}
	return nil
}

func (f *flacSink) Close() error {
	var firstErr error
	if n := len(f.pending) - len(f.pending)%f.channels; n > 0 {
		firstErr = f.enc.EncodeBlock(f.pending[:n])
	}
	f.pending = nil
	if err := f.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	// The flac encoder closes its writer itself when it is an io.Closer.
	if err := f.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
