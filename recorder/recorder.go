package recorder

import (
	"errors"
	"fmt"
	"sync"

	"speechkit/audio"
)

// Recorder captures from an input device into a sink while metering the signal.
type Recorder struct {
	settings Settings
	meter    *audio.Meter
	capture  audio.CaptureDevice

	mu        sync.Mutex
	sink      sink
	recording bool
	frames    uint64
	writeErr  error
}

// Open validates s, creates the destination and opens (but does not start) capture.
func Open(ctx audio.Context, device *audio.DeviceInfo, s Settings) (*Recorder, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("recorder settings: %w", err)
	}
	if ctx == nil {
		return nil, errors.New("recorder: no audio context")
	}
	out, err := newSink(s)
	if err != nil {
		return nil, err
	}
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{SampleRate: s.SampleRate, Channels: s.Channels})
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("recorder capture: %w", err)
	}
	return &Recorder{
		settings: s,
		meter:    audio.NewMeter(int(s.Channels)),
		capture:  capture,
		sink:     out,
	}, nil
}

func (r *Recorder) Settings() Settings { return r.settings }

func (r *Recorder) DeviceName() string { return r.capture.DeviceName() }

// Record starts capturing. Calling it while recording is a no-op.
func (r *Recorder) Record() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return nil
	}
	if r.sink == nil {
		r.mu.Unlock()
		return errors.New("recorder closed")
	}
	r.recording = true
	r.mu.Unlock()

	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("recorder start: %w", err)
	}
	return nil
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.meter.Process(data)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.sink == nil || r.writeErr != nil {
		return
	}
	if err := r.sink.Write(data); err != nil {
		r.writeErr = err
		return
	}
	r.frames += uint64(frameCount)
}

// UpdateMeters refreshes the values AveragePower reports.
func (r *Recorder) UpdateMeters() { r.meter.Update() }

// AveragePower is the last metered power of channel ch in dBFS.
func (r *Recorder) AveragePower(ch int) float64 { return r.meter.AveragePower(ch) }

// Frames is the number of frames handed to the sink so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Err returns the first sink write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	was := r.recording
	r.recording = false
	r.mu.Unlock()
	if was {
		r.capture.Stop()
		r.capture.ClearCallback()
	}
}

// Close stops capture and finalizes the destination.
func (r *Recorder) Close() error {
	r.Stop()
	r.capture.Close()

	r.mu.Lock()
	out := r.sink
	r.sink = nil
	writeErr := r.writeErr
	r.mu.Unlock()

	if out == nil {
		return nil
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing recording: %w", err)
	}
	return writeErr
}
