package transcriber

import (
	"sync"
	"time"
)

const (
	streamChunkMs        = 200
	defaultRequestChunks = 128
)

// Format of the PCM appended to a Request: interleaved little-endian int16.
type Format struct {
	SampleRate uint32
	Channels   uint32
}

func (f Format) bytesPerSecond() int {
	return int(f.SampleRate) * int(f.Channels) * 2
}

// Request is the audio side of a streaming recognition: capture threads append
// buffers, a recognition task consumes them as fixed-duration chunks. Append never
// blocks; when the consumer falls behind, chunks are dropped and counted.
type Request struct {
	format     Format
	chunkBytes int
	chunks     chan []byte

	mu       sync.Mutex
	pending  []byte
	ended    bool
	appended uint64
	dropped  uint64
}

// NewRequest buffers up to capacity chunks of 200ms; capacity <= 0 uses the default.
func NewRequest(format Format, capacity int) *Request {
	if format.Channels == 0 {
		format.Channels = 1
	}
	if capacity <= 0 {
		capacity = defaultRequestChunks
	}
	chunkBytes := format.bytesPerSecond() * streamChunkMs / 1000
	if chunkBytes <= 0 {
		chunkBytes = 1
	}
	return &Request{
		format:     format,
		chunkBytes: chunkBytes,
		chunks:     make(chan []byte, capacity),
	}
}

func (r *Request) Format() Format { return r.format }

// Append copies pcm into the request. Safe for concurrent use; ignored after EndAudio.
func (r *Request) Append(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended || len(pcm) == 0 {
		return
	}
	r.appended += uint64(len(pcm))
	r.pending = append(r.pending, pcm...)
	for len(r.pending) >= r.chunkBytes {
		chunk := make([]byte, r.chunkBytes)
		copy(chunk, r.pending[:r.chunkBytes])
		r.pending = r.pending[r.chunkBytes:]
		r.pushLocked(chunk)
	}
}

func (r *Request) pushLocked(chunk []byte) {
	select {
	case r.chunks <- chunk:
	default:
		r.dropped += uint64(len(chunk))
	}
}

// EndAudio flushes the buffered tail and closes the chunk stream.
func (r *Request) EndAudio() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	if len(r.pending) > 0 {
		r.pushLocked(r.pending)
		r.pending = nil
	}
	close(r.chunks)
}

// Chunks is consumed by exactly one recognition task.
func (r *Request) Chunks() <-chan []byte { return r.chunks }

func (r *Request) Appended() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appended
}

func (r *Request) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// AudioDuration converts a byte count of this request's PCM to time.
func (r *Request) AudioDuration(bytes uint64) time.Duration {
	bps := r.format.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}
