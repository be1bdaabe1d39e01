package session

import (
	"context"
	"fmt"
	"time"

	"speechkit/keyword"
	"speechkit/log"
	"speechkit/permission"
	"speechkit/recorder"
	"speechkit/transcriber"
)

const AlertTitle = "Speech Recognizer Error"

const (
	MsgEngineError       = "There has been an audio engine error."
	MsgUnsupportedLocale = "Speech recognition is not supported for your current locale."
	MsgUnavailable       = "Speech recognition is not currently available. Check back at a later time."
	MsgRecognitionError  = "There has been a speech recognition error."
)

// StatusListening prefixes the status shown once the recognition task runs.
const StatusListening = "Listening"

const (
	DefaultMeterInterval   = 9 * time.Millisecond
	DefaultTapBufferFrames = 1024
)

// Recorder meters the microphone for the waveform.
type Recorder interface {
	Record() error
	UpdateMeters()
	AveragePower(channel int) float64
	Close() error
}

// Engine is the live input node feeding recognition.
type Engine interface {
	InstallTap(bufferFrames int, fn func(pcm []byte))
	Prepare() error
	Start() error
	Stop()
}

type Display interface {
	SetAmplitude(amplitude float64)
	SetTranscript(text string)
	SetBackground(c keyword.Color)
	SetStatus(text string)
}

type Alerter interface {
	Alert(title, message string)
}

type Options struct {
	Authorizer permission.Authorizer

	RecorderSettings recorder.Settings
	OpenRecorder     func(recorder.Settings) (Recorder, error)

	Engine          Engine
	TapBufferFrames int
	RequestFormat   transcriber.Format
	RequestChunks   int

	// NewRecognizer returns transcriber.ErrUnsupportedLocale (or a nil recognizer)
	// when lang cannot be recognized.
	NewRecognizer func(lang string) (transcriber.Recognizer, error)
	Language      string

	Keywords      *keyword.Table
	MeterInterval time.Duration

	Display Display
	Alerter Alerter
}

// Snapshot is a consistent copy of the controller's state.
type Snapshot struct {
	State          State
	Watermark      time.Duration
	Transcript     string
	Background     keyword.Color
	HasBackground  bool
	KeywordActions int
	Recording      bool
}

type event interface{}

type initializeEvent struct{}

type authorizationEvent struct{ status permission.Status }

type availabilityEvent struct {
	recognizer transcriber.Recognizer
	available  bool
}

type recognitionEvent struct {
	result *transcriber.Result
	err    error
}

type snapshotEvent struct{ reply chan Snapshot }

// Controller owns the session. Every callback is posted to one channel and handled
// on the goroutine running Run, which is the only one touching the fields below.
type Controller struct {
	opts    Options
	events  chan event
	closing chan struct{}
	done    chan struct{}
	ctx     context.Context

	state          State
	initialized    bool
	captureStarted bool
	watermark      time.Duration
	transcript     string
	background     keyword.Color
	hasBackground  bool
	keywordActions int

	recorder Recorder
	ticker   *time.Ticker
	tickC    <-chan time.Time
	request  *transcriber.Request
	task     transcriber.Task
}

func New(opts Options) *Controller {
	if opts.MeterInterval <= 0 {
		opts.MeterInterval = DefaultMeterInterval
	}
	if opts.TapBufferFrames <= 0 {
		opts.TapBufferFrames = DefaultTapBufferFrames
	}
	if opts.Keywords == nil {
		opts.Keywords = keyword.Default()
	}
	return &Controller{
		opts:    opts,
		events:  make(chan event, 64),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     context.Background(),
	}
}

// Initialize requests authorization. Only the first call has an effect.
func (c *Controller) Initialize() {
	c.post(initializeEvent{})
}

// Snapshot asks the Run goroutine for its state; ok is false once Run has exited.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	select {
	case c.events <- snapshotEvent{reply: reply}:
	case <-c.closing:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}
	select {
	case s := <-reply:
		return s, true
	case <-c.done:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}
}

// Done is closed when Run has returned and resources are released.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

// Run handles events until ctx is cancelled, then releases the capture session.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ev)
		case <-c.tickC:
			c.tick()
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case initializeEvent:
		c.initialize()
	case authorizationEvent:
		c.authorized(ev.status)
	case availabilityEvent:
		c.availability(ev.recognizer, ev.available)
	case recognitionEvent:
		c.recognition(ev.result, ev.err)
	case snapshotEvent:
		ev.reply <- c.snapshot()
	}
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:          c.state,
		Watermark:      c.watermark,
		Transcript:     c.transcript,
		Background:     c.background,
		HasBackground:  c.hasBackground,
		KeywordActions: c.keywordActions,
		Recording:      c.recorder != nil,
	}
}

func (c *Controller) transition(to State) bool {
	if !canTransition(c.state, to) {
		log.Warnf("ignored transition %s -> %s", c.state, to)
		return false
	}
	c.state = to
	return true
}

func (c *Controller) initialize() {
	if c.initialized {
		return
	}
	c.initialized = true
	c.transition(AwaitingAuthorization)
	c.status("Waiting for speech recognition permission...")
	c.opts.Authorizer.RequestAuthorization(func(s permission.Status) {
		c.post(authorizationEvent{status: s})
	})
}

func (c *Controller) authorized(s permission.Status) {
	if c.state != AwaitingAuthorization {
		return
	}
	log.Authorization(s.String())
	switch s {
	case permission.Authorized:
		c.transition(Capturing)
		c.startCapture()
		c.startRecognition()
	case permission.Denied:
		c.transition(Denied)
		c.status("Speech recognition permission was denied.")
	case permission.Restricted:
		c.transition(Restricted)
		c.status("Speech recognition is restricted on this device.")
	default:
		c.transition(Undetermined)
		c.status("Speech recognition permission has not been determined.")
	}
}

func (c *Controller) startCapture() {
	if c.captureStarted {
		return
	}
	c.captureStarted = true

	s := c.opts.RecorderSettings
	if c.opts.OpenRecorder == nil {
		return
	}
	rec, err := c.opts.OpenRecorder(s)
	if err == nil {
		if err = rec.Record(); err != nil {
			if cerr := rec.Close(); cerr != nil {
				log.Warnf("recorder close: %v", cerr)
			}
		}
	}
	log.RecorderOpen(s.Encoding.String(), s.SampleRate, s.Channels, s.Destination, err)
	if err != nil {
		return
	}
	c.recorder = rec
	c.ticker = time.NewTicker(c.opts.MeterInterval)
	c.tickC = c.ticker.C
}

func (c *Controller) tick() {
	if c.recorder == nil {
		return
	}
	c.recorder.UpdateMeters()
	c.opts.Display.SetAmplitude(NormalizedAmplitude(c.recorder.AveragePower(0)))
}

func (c *Controller) startRecognition() {
	if c.request != nil {
		return
	}
	c.request = transcriber.NewRequest(c.opts.RequestFormat, c.opts.RequestChunks)
	req := c.request
	c.opts.Engine.InstallTap(c.opts.TapBufferFrames, req.Append)

	if err := c.opts.Engine.Prepare(); err != nil {
		c.fail(MsgEngineError, err)
		return
	}
	if err := c.opts.Engine.Start(); err != nil {
		c.fail(MsgEngineError, err)
		return
	}

	rec, err := c.opts.NewRecognizer(c.opts.Language)
	if err != nil || rec == nil {
		if err == nil {
			err = fmt.Errorf("%w: %q", transcriber.ErrUnsupportedLocale, c.opts.Language)
		}
		c.fail(MsgUnsupportedLocale, err)
		return
	}

	ctx := c.ctx
	go func() {
		c.post(availabilityEvent{recognizer: rec, available: rec.IsAvailable(ctx)})
	}()
	c.status(fmt.Sprintf("Checking %s availability...", rec.Name()))
}

func (c *Controller) availability(rec transcriber.Recognizer, available bool) {
	if c.state != Capturing || c.task != nil {
		return
	}
	if !available {
		c.fail(MsgUnavailable, fmt.Errorf("recognizer %s unavailable", rec.Name()))
		return
	}
	task, err := rec.RecognitionTask(c.ctx, c.request, func(r *transcriber.Result, err error) {
		c.post(recognitionEvent{result: r, err: err})
	})
	if err != nil {
		c.fail(MsgRecognitionError, err)
		return
	}
	c.task = task
	c.transition(Recognizing)
	log.RecognitionStart(rec.Name(), rec.Language())
	c.status(fmt.Sprintf("%s (%s, %s)", StatusListening, rec.Name(), rec.Language()))
}

func (c *Controller) recognition(r *transcriber.Result, err error) {
	if c.state != Recognizing {
		return
	}
	if err != nil {
		log.Errorf("recognition: %v", err)
		c.fail(MsgRecognitionError, err)
		return
	}
	if r == nil {
		return
	}

	c.transcript = r.Transcript
	c.opts.Display.SetTranscript(r.Transcript)
	if r.IsFinal {
		log.TranscriptText(r.Transcript)
	}

	seg, ok := r.LastFinalized()
	if !ok || seg.Duration <= c.watermark {
		return
	}
	c.watermark = seg.Duration
	if a, ok := c.opts.Keywords.Match(seg.Text); ok {
		c.background = a.Color
		c.hasBackground = true
		c.keywordActions++
		c.opts.Display.SetBackground(a.Color)
		log.KeywordAction(a.Keyword, a.Color.String(), c.watermark)
	}
}

// fail alerts and moves to RecognitionFailed. The capture keeps running; nothing
// is retried.
func (c *Controller) fail(message string, err error) {
	log.Errorf("%s: %v", message, err)
	c.transition(RecognitionFailed)
	c.status("Speech recognition stopped.")
	log.Alert(AlertTitle, message)
	if c.opts.Alerter != nil {
		c.opts.Alerter.Alert(AlertTitle, message)
	}
}

func (c *Controller) status(text string) {
	c.opts.Display.SetStatus(text)
}

func (c *Controller) shutdown() {
	close(c.closing)
	if c.ticker != nil {
		c.ticker.Stop()
	}
	if c.task != nil {
		c.task.Cancel()
	}
	if c.request != nil {
		c.request.EndAudio()
		c.opts.Engine.Stop()
	}
	if c.recorder != nil {
		if err := c.recorder.Close(); err != nil {
			log.Warnf("recorder close: %v", err)
		}
	}
	log.SessionEnd(c.state.String(), c.keywordActions)
	close(c.done)
}
