package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"speechkit/keyword"
	"speechkit/log"
	"speechkit/permission"
	"speechkit/recorder"
	"speechkit/transcriber"
)

type fakeRecorder struct {
	mu        sync.Mutex
	power     float64
	recordErr error
	closeErr  error
	updates   int
	closed    bool
}

func (r *fakeRecorder) Record() error { return r.recordErr }

func (r *fakeRecorder) UpdateMeters() {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
}

func (r *fakeRecorder) AveragePower(int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.power
}

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.closeErr
}

type fakeEngine struct {
	mu       sync.Mutex
	taps     int
	startErr error
	started  bool
	stopped  bool
	tap      func([]byte)
}

func (e *fakeEngine) InstallTap(_ int, fn func([]byte)) {
	e.mu.Lock()
	e.taps++
	e.tap = fn
	e.mu.Unlock()
}

func (e *fakeEngine) Prepare() error { return nil }

func (e *fakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.started = true
	return nil
}

func (e *fakeEngine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

type stubTask struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

func (t *stubTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		t.cancelled = true
		close(t.done)
	}
}

func (t *stubTask) Done() <-chan struct{} { return t.done }

// stubRecognizer hands the test the result handler of its single task.
type stubRecognizer struct {
	available bool

	mu      sync.Mutex
	tasks   int
	handler transcriber.Handler
	task    *stubTask
}

func (r *stubRecognizer) Name() string     { return "stub" }
func (r *stubRecognizer) Language() string { return "en-US" }

func (r *stubRecognizer) IsAvailable(context.Context) bool { return r.available }

func (r *stubRecognizer) RecognitionTask(_ context.Context, _ *transcriber.Request, h transcriber.Handler) (transcriber.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks++
	r.handler = h
	r.task = &stubTask{done: make(chan struct{})}
	return r.task, nil
}

func (r *stubRecognizer) emit(res *transcriber.Result, err error) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	h(res, err)
}

type recordingDisplay struct {
	mu          sync.Mutex
	amplitudes  []float64
	transcripts []string
	backgrounds []keyword.Color
	statuses    []string
	alerts      []string
}

func (d *recordingDisplay) SetAmplitude(a float64) {
	d.mu.Lock()
	d.amplitudes = append(d.amplitudes, a)
	d.mu.Unlock()
}

func (d *recordingDisplay) SetTranscript(s string) {
	d.mu.Lock()
	d.transcripts = append(d.transcripts, s)
	d.mu.Unlock()
}

func (d *recordingDisplay) SetBackground(c keyword.Color) {
	d.mu.Lock()
	d.backgrounds = append(d.backgrounds, c)
	d.mu.Unlock()
}

func (d *recordingDisplay) SetStatus(s string) {
	d.mu.Lock()
	d.statuses = append(d.statuses, s)
	d.mu.Unlock()
}

func (d *recordingDisplay) Alert(title, message string) {
	d.mu.Lock()
	d.alerts = append(d.alerts, title+": "+message)
	d.mu.Unlock()
}

func (d *recordingDisplay) alertCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type countingAuthorizer struct {
	status permission.Status
	mu     sync.Mutex
	calls  int
}

func (a *countingAuthorizer) RequestAuthorization(cb func(permission.Status)) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	go cb(a.status)
}

type harness struct {
	c          *Controller
	rec        *fakeRecorder
	engine     *fakeEngine
	recognizer *stubRecognizer
	display    *recordingDisplay
	auth       *countingAuthorizer
	opened     int
	factoried  int
	cancel     context.CancelFunc
}

type harnessOption func(*harness, *Options)

func newHarness(t *testing.T, status permission.Status, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		rec:        &fakeRecorder{power: -160},
		engine:     &fakeEngine{},
		recognizer: &stubRecognizer{available: true},
		display:    &recordingDisplay{},
		auth:       &countingAuthorizer{status: status},
	}
	o := Options{
		Authorizer:       h.auth,
		RecorderSettings: recorder.MeteringSettings(),
		OpenRecorder: func(recorder.Settings) (Recorder, error) {
			h.opened++
			return h.rec, nil
		},
		Engine:        h.engine,
		RequestFormat: transcriber.Format{SampleRate: 16000, Channels: 1},
		NewRecognizer: func(string) (transcriber.Recognizer, error) {
			h.factoried++
			return h.recognizer, nil
		},
		Language:      "en-US",
		MeterInterval: time.Millisecond,
		Display:       h.display,
		Alerter:       h.display,
	}
	for _, opt := range opts {
		opt(h, &o)
	}
	h.c = New(o)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.c.Done()
	})
	h.c.Initialize()
	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, ok := h.c.Snapshot(ctx)
	if !ok {
		t.Fatal("snapshot unavailable")
	}
	return s
}

func (h *harness) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := h.snapshot(t)
		if s.State == want {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", s.State, want)
		}
		time.Sleep(time.Millisecond)
	}
}

func final(text string, d time.Duration) *transcriber.Result {
	return &transcriber.Result{
		Transcript: text,
		Segments:   []transcriber.Segment{{Text: text, Duration: d, Final: true}},
		IsFinal:    true,
	}
}

func TestKeywordFiresOnce(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.waitState(t, Recognizing)

	h.recognizer.emit(final("red", 500*time.Millisecond), nil)
	s := h.snapshot(t)
	if !s.HasBackground || s.Background != keyword.Red {
		t.Fatalf("background = %v (set=%v), want red", s.Background, s.HasBackground)
	}
	if s.Watermark != 500*time.Millisecond {
		t.Fatalf("watermark = %v, want 500ms", s.Watermark)
	}

	h.recognizer.emit(final("red", 500*time.Millisecond), nil)
	s = h.snapshot(t)
	if s.KeywordActions != 1 {
		t.Errorf("keyword actions = %d, want 1", s.KeywordActions)
	}
	if s.Transcript != "red" {
		t.Errorf("transcript = %q", s.Transcript)
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.waitState(t, Recognizing)

	steps := []struct {
		result      *transcriber.Result
		wantMark    time.Duration
		wantActions int
	}{
		{final("green", 300*time.Millisecond), 300 * time.Millisecond, 1},
		{final("red", 200*time.Millisecond), 300 * time.Millisecond, 1},
		{final("red", 300*time.Millisecond), 300 * time.Millisecond, 1},
		{&transcriber.Result{Transcript: "bla", Segments: []transcriber.Segment{{Text: "bla"}}}, 300 * time.Millisecond, 1},
		{final("Green ", 400*time.Millisecond), 400 * time.Millisecond, 1},
		{final("greenish", 450*time.Millisecond), 450 * time.Millisecond, 1},
		{final("BLACK", 800*time.Millisecond), 800 * time.Millisecond, 2},
	}
	var last time.Duration
	for i, step := range steps {
		h.recognizer.emit(step.result, nil)
		s := h.snapshot(t)
		if s.Watermark < last {
			t.Fatalf("step %d: watermark decreased %v -> %v", i, last, s.Watermark)
		}
		last = s.Watermark
		if s.Watermark != step.wantMark || s.KeywordActions != step.wantActions {
			t.Errorf("step %d: watermark=%v actions=%d, want %v %d", i, s.Watermark, s.KeywordActions, step.wantMark, step.wantActions)
		}
	}
	if s := h.snapshot(t); s.Background != keyword.Black {
		t.Errorf("background = %v, want black", s.Background)
	}
}

func TestDeniedOpensNothing(t *testing.T) {
	for _, tt := range []struct {
		status permission.Status
		want   State
	}{
		{permission.Denied, Denied},
		{permission.Restricted, Restricted},
		{permission.NotDetermined, Undetermined},
	} {
		t.Run(tt.status.String(), func(t *testing.T) {
			h := newHarness(t, tt.status)
			h.waitState(t, tt.want)

			if h.opened != 0 || h.engine.taps != 0 || h.factoried != 0 {
				t.Errorf("opened=%d taps=%d recognizers=%d, want all 0", h.opened, h.engine.taps, h.factoried)
			}
			if h.display.alertCount() != 0 {
				t.Error("non-authorized outcomes must not alert")
			}
			h.display.mu.Lock()
			n := len(h.display.statuses)
			h.display.mu.Unlock()
			if n < 2 {
				t.Error("expected a status line for the outcome")
			}
		})
	}
}

func TestRecognizerUnavailable(t *testing.T) {
	h := newHarness(t, permission.Authorized, func(h *harness, _ *Options) {
		h.recognizer.available = false
	})
	h.waitState(t, RecognitionFailed)

	if n := h.display.alertCount(); n != 1 {
		t.Fatalf("alerts = %d, want 1", n)
	}
	if h.display.alerts[0] != AlertTitle+": "+MsgUnavailable {
		t.Errorf("alert = %q", h.display.alerts[0])
	}
	if h.recognizer.tasks != 0 {
		t.Errorf("tasks = %d, want 0", h.recognizer.tasks)
	}
}

func TestUnsupportedLocale(t *testing.T) {
	h := newHarness(t, permission.Authorized, func(h *harness, o *Options) {
		o.NewRecognizer = func(lang string) (transcriber.Recognizer, error) {
			h.factoried++
			return nil, transcriber.ErrUnsupportedLocale
		}
	})
	h.waitState(t, RecognitionFailed)
	if h.display.alerts[0] != AlertTitle+": "+MsgUnsupportedLocale {
		t.Errorf("alert = %q", h.display.alerts[0])
	}
}

func TestEngineStartFailure(t *testing.T) {
	h := newHarness(t, permission.Authorized, func(h *harness, _ *Options) {
		h.engine.startErr = errors.New("device busy")
	})
	h.waitState(t, RecognitionFailed)
	if h.display.alertCount() != 1 || h.display.alerts[0] != AlertTitle+": "+MsgEngineError {
		t.Errorf("alerts = %v", h.display.alerts)
	}
	if h.factoried != 0 {
		t.Error("recognizer created after engine failure")
	}
}

func TestStreamErrorStalls(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.waitState(t, Recognizing)

	h.recognizer.emit(nil, errors.New("socket reset"))
	h.waitState(t, RecognitionFailed)
	h.recognizer.emit(final("red", time.Second), nil)
	h.recognizer.emit(nil, errors.New("again"))

	s := h.snapshot(t)
	if s.KeywordActions != 0 || s.Watermark != 0 {
		t.Errorf("results after failure were processed: %+v", s)
	}
	if n := h.display.alertCount(); n != 1 {
		t.Errorf("alerts = %d, want 1", n)
	}
	if h.display.alerts[0] != AlertTitle+": "+MsgRecognitionError {
		t.Errorf("alert = %q", h.display.alerts[0])
	}
}

func TestRecorderFailureStillRecognizes(t *testing.T) {
	h := newHarness(t, permission.Authorized, func(h *harness, o *Options) {
		o.OpenRecorder = func(recorder.Settings) (Recorder, error) {
			return nil, errors.New("no input")
		}
	})
	s := h.waitState(t, Recognizing)
	if s.Recording {
		t.Error("recorder should not be active")
	}
	time.Sleep(10 * time.Millisecond)
	h.display.mu.Lock()
	defer h.display.mu.Unlock()
	if len(h.display.amplitudes) != 0 || len(h.display.alerts) != 0 {
		t.Errorf("amplitudes=%d alerts=%v", len(h.display.amplitudes), h.display.alerts)
	}
}

func TestRecordFailureClosesRecorder(t *testing.T) {
	logDir := t.TempDir()
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close(); log.SetDir("") })

	h := newHarness(t, permission.Authorized, func(h *harness, o *Options) {
		h.rec.recordErr = errors.New("input busy")
		h.rec.closeErr = errors.New("device gone")
	})
	s := h.waitState(t, Recognizing)
	if s.Recording {
		t.Error("recorder should not be active after Record failed")
	}
	h.rec.mu.Lock()
	closed := h.rec.closed
	h.rec.mu.Unlock()
	if !closed {
		t.Error("recorder not closed after Record failed")
	}

	data, err := os.ReadFile(filepath.Join(logDir, log.DiagnosticsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "recorder close: device gone") {
		t.Errorf("diagnostics log missing close error:\n%s", data)
	}
}

func TestAmplitudeTicks(t *testing.T) {
	h := newHarness(t, permission.Authorized, func(h *harness, _ *Options) {
		h.rec.power = -20
	})
	h.waitState(t, Recognizing)

	deadline := time.Now().Add(2 * time.Second)
	for {
		h.display.mu.Lock()
		n := len(h.display.amplitudes)
		var last float64
		if n > 0 {
			last = h.display.amplitudes[n-1]
		}
		h.display.mu.Unlock()
		if n > 0 {
			if math.Abs(last-0.1) > 1e-9 {
				t.Fatalf("amplitude = %v, want 0.1", last)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no amplitude published")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitializeTwice(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.c.Initialize()
	h.waitState(t, Recognizing)
	h.c.Initialize()
	h.snapshot(t)

	h.auth.mu.Lock()
	calls := h.auth.calls
	h.auth.mu.Unlock()
	if calls != 1 || h.opened != 1 || h.engine.taps != 1 || h.recognizer.tasks != 1 {
		t.Errorf("auth=%d opened=%d taps=%d tasks=%d, want 1 each", calls, h.opened, h.engine.taps, h.recognizer.tasks)
	}
}

func TestEngineTapFeedsRequest(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.waitState(t, Recognizing)

	h.engine.mu.Lock()
	tap := h.engine.tap
	h.engine.mu.Unlock()
	tap(make([]byte, 2048))

	if got := h.c.request.Appended(); got != 2048 {
		t.Errorf("request appended = %d, want 2048", got)
	}
}

func TestShutdownReleases(t *testing.T) {
	h := newHarness(t, permission.Authorized)
	h.waitState(t, Recognizing)

	h.cancel()
	<-h.c.Done()

	if !h.rec.closed {
		t.Error("recorder not closed")
	}
	if !h.engine.stopped {
		t.Error("engine not stopped")
	}
	if !h.recognizer.task.cancelled {
		t.Error("task not cancelled")
	}
	if _, ok := h.c.Snapshot(context.Background()); ok {
		t.Error("snapshot after shutdown should fail")
	}
}

func TestNormalizedAmplitude(t *testing.T) {
	if got := NormalizedAmplitude(0); got != 1 {
		t.Errorf("NormalizedAmplitude(0) = %v, want 1", got)
	}
	if got := NormalizedAmplitude(-20); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("NormalizedAmplitude(-20) = %v, want 0.1", got)
	}
	for p := -160.0; p <= 0; p += 0.25 {
		a := NormalizedAmplitude(p)
		if a <= 0 || a > 1 {
			t.Fatalf("NormalizedAmplitude(%v) = %v outside (0, 1]", p, a)
		}
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Uninitialized, AwaitingAuthorization, true},
		{AwaitingAuthorization, Capturing, true},
		{AwaitingAuthorization, Denied, true},
		{Capturing, Recognizing, true},
		{Capturing, RecognitionFailed, true},
		{Recognizing, RecognitionFailed, true},
		{Uninitialized, Recognizing, false},
		{Denied, Capturing, false},
		{RecognitionFailed, Recognizing, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
	for _, s := range []State{Denied, Restricted, Undetermined, RecognitionFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
