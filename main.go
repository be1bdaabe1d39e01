package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"speechkit/audio"
	"speechkit/beep"
	"speechkit/clipboard"
	"speechkit/config"
	"speechkit/doctor"
	"speechkit/log"
	"speechkit/permission"
	"speechkit/recorder"
	"speechkit/session"
	"speechkit/shutdown"
	"speechkit/transcriber"
)

var version = "dev"

var guiMode bool

// runDone is closed when run returns, so the GUI thread can wait for cleanup.
var runDone = make(chan struct{})

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(cfg config.Config) string {
	provider := cfg.Provider
	if lang, ok := transcriber.SupportedLanguage(cfg.Language); ok {
		provider += " (" + lang + ")"
	}
	return fmt.Sprintf("[%s | %d Hz]", provider, cfg.Engine.SampleRate)
}

// newRecognizerFactory returns the recognizer constructor the controller calls with
// the session language.
func newRecognizerFactory(cfg config.Config) func(lang string) (transcriber.Recognizer, error) {
	if cfg.Provider == "fake" {
		return func(lang string) (transcriber.Recognizer, error) {
			resolved, ok := transcriber.SupportedLanguage(lang)
			if !ok {
				return nil, fmt.Errorf("%w: %q", transcriber.ErrUnsupportedLocale, lang)
			}
			script, err := transcriber.ParseScript(cfg.Script)
			if err != nil {
				return nil, err
			}
			return transcriber.NewFake(resolved, script), nil
		}
	}
	dg := cfg.DeepgramConfig()
	return func(lang string) (transcriber.Recognizer, error) {
		d, err := transcriber.NewDeepgram(dg, lang)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func newConsent(cfg config.Config, prompter permission.Prompter) *permission.Consent {
	path := cfg.ConsentFile
	if path == "" {
		path = permission.DefaultConsentPath()
	}
	return &permission.Consent{
		Path:       path,
		Prompter:   prompter,
		Restricted: cfg.Restricted || (cfg.Provider == "deepgram" && cfg.APIKey() == ""),
	}
}

func openRecorder(actx audio.Context, dev *audio.DeviceInfo) func(recorder.Settings) (session.Recorder, error) {
	return func(s recorder.Settings) (session.Recorder, error) {
		rec, err := recorder.Open(actx, dev, s)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
}

func run() {
	defer close(runDone)

	configFlag := flag.String("config", "", "Path to YAML config file")
	langFlag := flag.String("lang", "", "Recognition language (e.g., en-US, de). Empty = config or system locale")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.String("test", "", "Test mode: replay a 16-bit PCM WAV file instead of the microphone (headless)")
	scriptFlag := flag.String("script", "", "Fake recognizer script, e.g. \"red@0.5,green@1.2\" (implies provider fake)")
	authFlag := flag.String("authorization", "", "Force authorization status: authorized, denied, restricted or undetermined")
	headlessFlag := flag.Bool("headless", false, "Print events as lines instead of running the terminal UI")
	quietFlag := flag.Bool("quiet", false, "Disable audio cues")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.Bool("gui", false, "Run the desktop window (requires a build with -tags gui)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if crashFile, err := log.OpenCrashFile(); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	} else {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("speechkit %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	testMode := *testFlag != ""
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if *deviceFlag != "" {
		cfg.Engine.Device = *deviceFlag
	}
	if *scriptFlag != "" {
		cfg.Script = *scriptFlag
	}
	if testMode || *scriptFlag != "" {
		cfg.Provider = "fake"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var forced *permission.Status
	if *authFlag != "" {
		s, err := permission.ParseStatus(*authFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		forced = &s
	} else if testMode {
		s := permission.Authorized
		forced = &s
	}

	recorderSettings, err := cfg.RecorderSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	keywords, err := cfg.KeywordTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	newRecognizer := newRecognizerFactory(cfg)
	format := cfg.EngineFormat()
	captureConfig := audio.CaptureConfig{SampleRate: format.SampleRate, Channels: format.Channels}

	var actx audio.Context
	var testDuration time.Duration
	switch {
	case testMode:
		fake, err := audio.NewFakeContext(*testFlag, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
		testDuration = fake.Duration(captureConfig)
		actx = fake
	case guiMode:
		actx = guiAudioContext()
	default:
		actx, err = audio.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if cfg.Engine.Device != "" {
		selectedDevice, err = audio.FindDevice(actx, cfg.Engine.Device)
		if err != nil || selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", cfg.Engine.Device)
			selectedDevice = nil
		}
	} else if *setupFlag && !testMode {
		selectedDevice, err = audio.SelectDevice(actx)
		if err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	if *doctorFlag {
		var consent *permission.Consent
		if forced == nil {
			consent = newConsent(cfg, nil)
		}
		os.Exit(doctor.Run(doctor.Options{
			Audio:            actx,
			Device:           selectedDevice,
			RecorderSettings: recorderSettings,
			MeterInterval:    cfg.MeterInterval(),
			Language:         cfg.Language,
			NewRecognizer:    newRecognizer,
			Consent:          consent,
			Interactive:      term.IsTerminal(int(os.Stdin.Fd())),
		}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.SessionStart(cfg.Provider, cfg.Language, deviceLineText(selectedDevice))

	if *quietFlag || testMode {
		beep.Disable()
	} else {
		go beep.Init()
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	// The front end's prompter answers the consent question.
	var fe frontEnd
	var prompter permission.Prompter
	closeFrontEnd := func() {}
	switch {
	case guiMode:
		app := guiFrontEnd()
		fe, prompter = app, app
		go func() {
			select {
			case <-app.Closed():
				stop()
			case <-ctx.Done():
			}
		}()
		closeFrontEnd = app.Quit
	case *headlessFlag || testMode:
		fe = newLineFrontEnd(os.Stdout)
		if !testMode && term.IsTerminal(int(os.Stdin.Fd())) {
			prompter = permission.LinePrompter{In: os.Stdin, Out: os.Stdout}
		}
	default:
		p := NewTUIProgram(clipboard.Copy)
		tuiDone := make(chan struct{})
		go func() {
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			close(tuiDone)
			stop()
		}()
		tfe := tuiFrontEnd{p: p, done: tuiDone}
		tfe.ModeLine(modeLineText(cfg))
		tfe.DeviceLine(deviceLineText(selectedDevice))
		fe, prompter = tfe, tfe
		closeFrontEnd = func() {
			p.Quit()
			<-tuiDone
		}
	}
	defer closeFrontEnd()

	var authorizer permission.Authorizer
	if forced != nil {
		authorizer = permission.Fixed(*forced)
	} else {
		authorizer = newConsent(cfg, prompter)
	}

	engine := audio.NewEngine(actx, selectedDevice, captureConfig)
	defer engine.Close()

	display := beepFrontEnd{newVoiceFrontEnd(fe, cfg.MeterInterval())}
	ctrl := session.New(session.Options{
		Authorizer:       authorizer,
		RecorderSettings: recorderSettings,
		OpenRecorder:     openRecorder(actx, selectedDevice),
		Engine:           engine,
		TapBufferFrames:  cfg.Engine.TapBufferFrames,
		RequestFormat:    format,
		RequestChunks:    cfg.Engine.RequestChunks,
		NewRecognizer:    newRecognizer,
		Language:         cfg.Language,
		Keywords:         keywords,
		MeterInterval:    cfg.MeterInterval(),
		Display:          display,
		Alerter:          display,
	})

	if testMode {
		testCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go driveTest(testCtx, cancel, ctrl, testDuration, os.Stdin, os.Stdout)
		ctx = testCtx
	}

	ctrl.Initialize()
	if err := ctrl.Run(ctx); err != nil {
		log.Errorf("session: %v", err)
	}
	<-ctrl.Done()
}
