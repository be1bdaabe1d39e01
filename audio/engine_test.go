package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type failingContext struct{}

func (failingContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (failingContext) Close()                         {}

func (failingContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, errors.New("no microphone")
}

func TestEngineTapBuffers(t *testing.T) {
	const frames = 1024*3 + 100
	ctx := NewFakeContextPCM(make([]byte, frames*2), false)
	e := NewEngine(ctx, nil, CaptureConfig{SampleRate: 16000, Channels: 1})

	var mu sync.Mutex
	var sizes []int
	got := make(chan struct{}, 16)
	e.InstallTap(1024, func(pcm []byte) {
		mu.Lock()
		sizes = append(sizes, len(pcm))
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Close()

	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tap buffers")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range sizes {
		if n != 2048 {
			t.Errorf("buffer %d has %d bytes, want 2048", i, n)
		}
	}
}

func TestEngineStartError(t *testing.T) {
	e := NewEngine(failingContext{}, nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err := e.Start(); err == nil {
		t.Fatal("expected error from failing context")
	}
	e.Stop() // must not panic without a capture device
}

func TestEngineNoContext(t *testing.T) {
	e := NewEngine(nil, nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err := e.Prepare(); err == nil {
		t.Fatal("expected error without audio context")
	}
}

func TestFakeContextDuration(t *testing.T) {
	pcm := make([]byte, 16000*2)
	fc := NewFakeContextPCM(pcm, false)
	if got := fc.Duration(CaptureConfig{SampleRate: 16000, Channels: 1}); got != time.Second {
		t.Errorf("mono duration = %v", got)
	}
	if got := fc.Duration(CaptureConfig{SampleRate: 16000, Channels: 2}); got != 500*time.Millisecond {
		t.Errorf("stereo duration = %v", got)
	}
	if got := fc.Duration(CaptureConfig{}); got != 0 {
		t.Errorf("zero rate duration = %v", got)
	}
}
