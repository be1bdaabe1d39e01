package audio

import (
	"errors"
	"fmt"
	"sync"
)

// TapFunc receives one buffer of interleaved int16 PCM from the input node.
type TapFunc = func(pcm []byte)

// Engine is the live input node: one capture device whose data is re-chunked into
// fixed-size buffers and handed to an installed tap.
type Engine struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig

	mu          sync.Mutex
	capture     CaptureDevice
	tap         TapFunc
	bufferBytes int
	pending     []byte
	running     bool
}

func NewEngine(ctx Context, device *DeviceInfo, config CaptureConfig) *Engine {
	return &Engine{ctx: ctx, device: device, config: config}
}

// Format is the capture format buffers are delivered in.
func (e *Engine) Format() CaptureConfig { return e.config }

// InstallTap registers fn for buffers of bufferFrames frames. Installing a second tap
// replaces the first.
func (e *Engine) InstallTap(bufferFrames int, fn TapFunc) {
	if bufferFrames <= 0 {
		bufferFrames = fakeFrameSize
	}
	e.mu.Lock()
	e.tap = fn
	e.bufferBytes = bufferFrames * e.config.FrameBytes()
	e.pending = nil
	e.mu.Unlock()
}

// RemoveTap detaches the current tap; capture keeps running.
func (e *Engine) RemoveTap() {
	e.mu.Lock()
	e.tap = nil
	e.pending = nil
	e.mu.Unlock()
}

// Prepare opens the capture device without starting it.
func (e *Engine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepareLocked()
}

func (e *Engine) prepareLocked() error {
	if e.capture != nil {
		return nil
	}
	if e.ctx == nil {
		return errors.New("audio engine: no audio context")
	}
	capture, err := e.ctx.NewCapture(e.device, e.config)
	if err != nil {
		return fmt.Errorf("audio engine: %w", err)
	}
	e.capture = capture
	return nil
}

func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	if err := e.prepareLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	capture := e.capture
	e.running = true
	e.mu.Unlock()

	// Start may deliver data synchronously, so onData must be able to take the lock.
	capture.SetCallback(e.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("audio engine start: %w", err)
	}
	return nil
}

func (e *Engine) Stop() {
	e.mu.Lock()
	capture := e.capture
	running := e.running
	e.running = false
	e.mu.Unlock()
	if capture == nil || !running {
		return
	}
	capture.Stop()
	capture.ClearCallback()
}

func (e *Engine) Close() {
	e.Stop()
	e.mu.Lock()
	capture := e.capture
	e.capture = nil
	e.mu.Unlock()
	if capture != nil {
		capture.Close()
	}
}

// DeviceName reports the capture device in use once prepared.
func (e *Engine) DeviceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture != nil {
		return e.capture.DeviceName()
	}
	if e.device != nil {
		return e.device.Name
	}
	return "system default"
}

func (e *Engine) onData(data []byte, _ uint32) {
	e.mu.Lock()
	tap := e.tap
	if tap == nil || len(data) == 0 {
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, data...)
	var buffers [][]byte
	for len(e.pending) >= e.bufferBytes {
		buf := make([]byte, e.bufferBytes)
		copy(buf, e.pending[:e.bufferBytes])
		e.pending = e.pending[e.bufferBytes:]
		buffers = append(buffers, buf)
	}
	e.mu.Unlock()

	for _, buf := range buffers {
		tap(buf)
	}
}
