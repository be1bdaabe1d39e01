package transcriber

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Step is one scripted word: once At of audio has been consumed, Text is emitted as
// a finalized segment lasting Duration.
type Step struct {
	Text     string
	At       time.Duration
	Duration time.Duration
}

// ParseScript reads "word@seconds,word@seconds". Each word is emitted after the given
// seconds of audio and finalized with that duration.
func ParseScript(s string) ([]Step, error) {
	var steps []Step
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		word, secs, ok := strings.Cut(item, "@")
		if !ok || word == "" {
			return nil, fmt.Errorf("script step %q: want word@seconds", item)
		}
		v, err := strconv.ParseFloat(secs, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("script step %q: invalid seconds", item)
		}
		d := time.Duration(v * float64(time.Second))
		steps = append(steps, Step{Text: word, At: d, Duration: d})
	}
	return steps, nil
}

// Fake replays a script against the audio it is fed.
type Fake struct {
	Lang      string
	Available bool
	Script    []Step
	// Err, when set, is delivered after the script has played.
	Err error

	tasks atomic.Int32
}

func NewFake(lang string, script []Step) *Fake {
	return &Fake{Lang: lang, Available: true, Script: script}
}

func (f *Fake) Name() string     { return "fake" }
func (f *Fake) Language() string { return f.Lang }

func (f *Fake) IsAvailable(context.Context) bool { return f.Available }

// Tasks reports how many recognition tasks were started.
func (f *Fake) Tasks() int { return int(f.tasks.Load()) }

func (f *Fake) RecognitionTask(ctx context.Context, req *Request, h Handler) (Task, error) {
	if req == nil || h == nil {
		return nil, fmt.Errorf("fake: request and handler are required")
	}
	f.tasks.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	t := &fakeTask{cancel: cancel, done: make(chan struct{})}
	go t.run(ctx, req, h, f.Script, f.Err)
	return t, nil
}

type fakeTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (t *fakeTask) run(ctx context.Context, req *Request, h Handler, script []Step, finalErr error) {
	defer close(t.done)

	var consumed uint64
	var segments []Segment
	next := 0
	for {
		for next < len(script) && req.AudioDuration(consumed) >= script[next].At {
			s := script[next]
			segments = append(segments, Segment{Text: s.Text, Start: s.At, Duration: s.Duration, Final: true})
			if ctx.Err() != nil {
				return
			}
			h(fakeResult(segments), nil)
			next++
		}
		if next == len(script) && finalErr != nil {
			h(nil, finalErr)
			return
		}

		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-req.Chunks():
			if !ok {
				return
			}
			consumed += uint64(len(chunk))
		}
	}
}

func fakeResult(segments []Segment) *Result {
	out := make([]Segment, len(segments))
	copy(out, segments)
	texts := make([]string, len(out))
	for i, s := range out {
		texts[i] = s.Text
	}
	return &Result{Transcript: strings.Join(texts, " "), Segments: out, IsFinal: true}
}

func (t *fakeTask) Done() <-chan struct{} { return t.done }

func (t *fakeTask) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}
