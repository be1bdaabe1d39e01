package recorder

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrUnsupportedEncoding = errors.New("unsupported encoding for destination")

type Encoding int

const (
	EncodingAAC Encoding = iota
	EncodingFLAC
)

func (e Encoding) String() string {
	switch e {
	case EncodingAAC:
		return "aac"
	case EncodingFLAC:
		return "flac"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "aac", "mpeg4aac":
		return EncodingAAC, nil
	case "flac":
		return EncodingFLAC, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

type Quality int

const (
	QualityMin Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityMax
)

var qualityNames = []string{"min", "low", "medium", "high", "max"}

func (q Quality) String() string {
	if q >= 0 && int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

func ParseQuality(s string) (Quality, error) {
	for i, name := range qualityNames {
		if strings.EqualFold(s, name) {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quality %q", s)
}

// Settings describe the recording format and where the encoded audio goes. An empty
// Destination or os.DevNull discards the audio and only meters it.
type Settings struct {
	Encoding    Encoding
	SampleRate  uint32
	Channels    uint32
	Quality     Quality
	Destination string
}

// MeteringSettings is the recorder used purely for level metering.
func MeteringSettings() Settings {
	return Settings{
		Encoding:    EncodingAAC,
		SampleRate:  12000,
		Channels:    1,
		Quality:     QualityHigh,
		Destination: os.DevNull,
	}
}

// Discards reports whether no audio is written anywhere.
func (s Settings) Discards() bool {
	return s.Destination == "" || s.Destination == os.DevNull
}

func (s Settings) Validate() error {
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		return fmt.Errorf("sample rate %d out of range [8000, 192000]", s.SampleRate)
	}
	if s.Channels != 1 && s.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", s.Channels)
	}
	if s.Quality < QualityMin || s.Quality > QualityMax {
		return fmt.Errorf("invalid quality %d", int(s.Quality))
	}
	switch s.Encoding {
	case EncodingAAC:
		if !s.Discards() {
			return fmt.Errorf("%s to %s: %w", s.Encoding, s.Destination, ErrUnsupportedEncoding)
		}
	case EncodingFLAC:
	default:
		return fmt.Errorf("%s: %w", s.Encoding, ErrUnsupportedEncoding)
	}
	return nil
}
