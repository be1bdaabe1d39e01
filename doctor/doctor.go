package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"speechkit/audio"
	"speechkit/permission"
	"speechkit/recorder"
	"speechkit/session"
	"speechkit/shutdown"
	"speechkit/transcriber"
)

type Options struct {
	Audio            audio.Context
	Device           *audio.DeviceInfo
	RecorderSettings recorder.Settings
	MeterFor         time.Duration
	MeterInterval    time.Duration

	Language      string
	NewRecognizer func(lang string) (transcriber.Recognizer, error)

	Consent *permission.Consent

	Out         io.Writer
	Interactive bool
}

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.MeterFor <= 0 {
		opts.MeterFor = 2 * time.Second
	}
	if opts.MeterInterval <= 0 {
		opts.MeterInterval = session.DefaultMeterInterval
	}
	if opts.Interactive {
		resetTerminal()
		setupInterruptHandler()
	}
	out := opts.Out

	fmt.Fprintln(out, "speechkit doctor - system diagnostics")
	fmt.Fprintln(out, "=====================================")

	allPass := true
	if !checkMeter(opts) {
		allPass = false
	}
	if !checkRecognizer(opts) {
		allPass = false
	}
	if !checkAuthorization(opts) {
		allPass = false
	}

	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkMeter(opts Options) bool {
	out := opts.Out
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[1/3] Microphone metering (%s)\n", opts.MeterFor)

	rec, err := recorder.Open(opts.Audio, opts.Device, opts.RecorderSettings)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	defer rec.Close()
	fmt.Fprintf(out, "  Device: %s\n", rec.DeviceName())

	if err := rec.Record(); err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}

	peak := audio.SilenceFloorDB
	ticker := time.NewTicker(opts.MeterInterval)
	defer ticker.Stop()
	deadline := time.After(opts.MeterFor)
loop:
	for {
		select {
		case <-ticker.C:
			rec.UpdateMeters()
			peak = max(peak, rec.AveragePower(0))
		case <-deadline:
			break loop
		}
	}

	fmt.Fprintf(out, "  Peak power: %.1f dB (amplitude %.3f)\n", peak, session.NormalizedAmplitude(peak))
	if peak <= audio.SilenceFloorDB {
		fmt.Fprintln(out, "  FAIL: no signal - check the input device and its mute switch")
		return false
	}
	fmt.Fprintln(out, "  PASS: microphone is metering")
	return true
}

func checkRecognizer(opts Options) bool {
	out := opts.Out
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[2/3] Speech recognizer (%s)\n", opts.Language)

	rec, err := opts.NewRecognizer(opts.Language)
	if err != nil || rec == nil {
		if errors.Is(err, transcriber.ErrUnsupportedLocale) || err == nil {
			fmt.Fprintf(out, "  FAIL: %s\n", session.MsgUnsupportedLocale)
		} else {
			fmt.Fprintf(out, "  FAIL: %v\n", err)
		}
		return false
	}
	fmt.Fprintf(out, "  Recognizer: %s (%s)\n", rec.Name(), rec.Language())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if !rec.IsAvailable(ctx) {
		fmt.Fprintf(out, "  FAIL: %s\n", session.MsgUnavailable)
		return false
	}
	fmt.Fprintf(out, "  PASS: available (%dms)\n", time.Since(start).Milliseconds())
	return true
}

func checkAuthorization(opts Options) bool {
	out := opts.Out
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[3/3] Speech recognition authorization")

	if opts.Consent == nil {
		fmt.Fprintln(out, "  FAIL: no authorizer configured")
		return false
	}
	status, stored := opts.Consent.Stored()
	if !stored {
		status = opts.Consent.Resolve()
	}
	fmt.Fprintf(out, "  Status: %s\n", status)
	if status != permission.Authorized {
		fmt.Fprintln(out, "  FAIL: recognition will not start")
		return false
	}
	fmt.Fprintln(out, "  PASS: authorized")
	return true
}
