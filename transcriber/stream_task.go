package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"speechkit/log"
)

type rawStream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamWord struct {
	Text    string
	Display string
	Start   float64
	End     float64
}

type streamUpdate struct {
	Transcript   string
	Words        []streamWord
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	SessionDur   time.Duration
}

// streamTask pumps a Request into a rawStream and turns the stream's updates into
// Results for the handler.
type streamTask struct {
	req     *Request
	handler Handler
	ws      rawStream
	conn    func() (bool, string) // connection reuse and TLS protocol, for metrics

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	sendDone chan struct{}
	recvDone chan struct{}
	done     chan struct{}

	handlerMu sync.Mutex

	mu        sync.Mutex
	err       error
	errOnce   sync.Once
	closing   bool
	segments  []Segment // most recent finalized segments, at most maxSegments
	committed string    // display text of every finalized segment
	stats     streamStats
}

// maxSegments bounds the finalized segments carried in each Result. The committed
// transcript keeps the full text.
const maxSegments = 256

func newStreamTask(ctx context.Context, req *Request, h Handler, dial func(context.Context) (rawStream, error)) *streamTask {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &streamTask{
		req:       req,
		handler:   h,
		startedAt: time.Now(),
		ctx:       taskCtx,
		cancel:    cancel,
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	go func() {
		connectStart := time.Now()
		ws, err := dial(taskCtx)
		t.mu.Lock()
		t.stats.ConnectDur = time.Since(connectStart)
		t.mu.Unlock()

		if err != nil {
			close(t.sendDone)
			close(t.recvDone)
			t.fail(fmt.Errorf("connecting recognition stream: %w", err))
			t.finish()
			return
		}

		t.mu.Lock()
		t.ws = ws
		closing := t.closing
		t.mu.Unlock()
		if closing {
			ws.Close()
			close(t.sendDone)
			close(t.recvDone)
			t.finish()
			return
		}

		go t.runSender()
		go t.runReceiver()
		<-t.sendDone
		<-t.recvDone
		t.finish()
	}()

	return t
}

func (t *streamTask) Done() <-chan struct{} { return t.done }

func (t *streamTask) Cancel() {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		<-t.done
		return
	}
	t.closing = true
	ws := t.ws
	t.mu.Unlock()

	t.cancel()
	if ws != nil {
		ws.Close()
	}
	select {
	case <-t.done:
	case <-time.After(2 * time.Second):
		log.Warn("recognition task drain timeout")
	}
}

func (t *streamTask) finish() {
	t.mu.Lock()
	stats := t.stats
	stats.SessionDur = time.Since(t.startedAt)
	t.mu.Unlock()

	m := log.StreamMetricsData{
		ConnectMs:    float64(stats.ConnectDur.Milliseconds()),
		TotalMs:      float64(stats.SessionDur.Milliseconds()),
		AudioS:       t.req.AudioDuration(stats.SentBytes).Seconds(),
		SentChunks:   stats.SentChunks,
		SentKB:       float64(stats.SentBytes) / 1024,
		DroppedKB:    float64(t.req.Dropped()) / 1024,
		RecvMessages: stats.RecvMessages,
		RecvFinal:    stats.RecvFinal,
	}
	if t.conn != nil {
		m.ConnReused, m.TLSProto = t.conn()
	}
	log.StreamMetrics(m)
	t.cancel()
	close(t.done)
}

func (t *streamTask) runSender() {
	defer close(t.sendDone)
	for {
		select {
		case <-t.ctx.Done():
			return
		case chunk, ok := <-t.req.Chunks():
			if !ok {
				if err := t.ws.CloseSend(); err != nil {
					t.fail(err)
				}
				return
			}
			if err := t.ws.Send(chunk); err != nil {
				t.fail(err)
				return
			}
			t.mu.Lock()
			t.stats.SentChunks++
			t.stats.SentBytes += uint64(len(chunk))
			t.mu.Unlock()
		}
	}
}

func (t *streamTask) runReceiver() {
	defer close(t.recvDone)
	for {
		update, err := t.ws.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.fail(err)
			return
		}

		isFinal := update.IsFinal || update.FromFinalize

		t.mu.Lock()
		t.stats.RecvMessages++
		if isFinal {
			t.stats.RecvFinal++
		} else {
			t.stats.RecvInterim++
		}
		result := t.applyLocked(update, isFinal)
		t.mu.Unlock()

		if result != nil {
			t.deliver(result, nil)
		}
	}
}

// applyLocked folds an update into the committed transcript and builds the Result
// the handler sees. Interim words carry zero duration.
func (t *streamTask) applyLocked(u streamUpdate, isFinal bool) *Result {
	words := u.Words
	if len(words) == 0 && u.Transcript != "" {
		for _, w := range strings.Fields(u.Transcript) {
			words = append(words, streamWord{Text: w})
		}
	}
	if len(words) == 0 && !u.SpeechFinal {
		return nil
	}

	var interim []Segment
	for _, w := range words {
		seg := Segment{Text: w.Text, Display: w.Display, Start: seconds(w.Start)}
		if isFinal {
			seg.Final = true
			seg.Duration = seconds(w.End) - seconds(w.Start)
			t.segments = append(t.segments, seg)
			t.committed = joinText(t.committed, seg.DisplayText())
		} else {
			interim = append(interim, seg)
		}
	}
	if len(t.segments) > 2*maxSegments {
		t.segments = append([]Segment(nil), t.segments[len(t.segments)-maxSegments:]...)
	}

	kept := t.segments
	if len(kept) > maxSegments {
		kept = kept[len(kept)-maxSegments:]
	}
	segments := make([]Segment, 0, len(kept)+len(interim))
	segments = append(segments, kept...)
	segments = append(segments, interim...)

	transcript := t.committed
	for _, seg := range interim {
		transcript = joinText(transcript, seg.DisplayText())
	}
	return &Result{
		Transcript: transcript,
		Segments:   segments,
		IsFinal:    u.SpeechFinal || u.FromFinalize,
	}
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (t *streamTask) fail(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	closing := t.closing
	t.mu.Unlock()
	if closing {
		return
	}
	t.errOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		ws := t.ws
		t.mu.Unlock()
		t.cancel()
		if ws != nil {
			ws.Close()
		}
		t.deliver(nil, err)
	})
}

// deliver serializes handler calls and suppresses them once the task is cancelled
// or has failed.
func (t *streamTask) deliver(r *Result, err error) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.mu.Lock()
	stop := t.closing || (err == nil && t.err != nil)
	t.mu.Unlock()
	if stop {
		return
	}
	t.handler(r, err)
}
