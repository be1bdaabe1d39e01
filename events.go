package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"speechkit/beep"
	"speechkit/keyword"
	"speechkit/permission"
	"speechkit/session"
)

// frontEnd abstracts the display layer so the Bubble Tea TUI, the fyne GUI and the
// headless line output receive the same controller events.
type frontEnd interface {
	session.Display
	session.Alerter
}

var errFrontEndClosed = errors.New("front end closed")

// tuiFrontEnd forwards controller events to the running bubbletea program. done is
// closed when the program exits.
type tuiFrontEnd struct {
	p    *tea.Program
	done <-chan struct{}
}

func (t tuiFrontEnd) SetAmplitude(a float64) { t.p.Send(AmplitudeMsg{Level: a}) }
func (t tuiFrontEnd) SetTranscript(text string) { t.p.Send(TranscriptMsg{Text: text}) }
func (t tuiFrontEnd) SetBackground(c keyword.Color) { t.p.Send(BackgroundMsg{Color: c}) }
func (t tuiFrontEnd) SetStatus(text string) { t.p.Send(StatusMsg{Text: text}) }
func (t tuiFrontEnd) Alert(title, message string) { t.p.Send(AlertMsg{Title: title, Message: message}) }
func (t tuiFrontEnd) ModeLine(text string) { t.p.Send(ModeLineMsg{Text: text}) }
func (t tuiFrontEnd) DeviceLine(text string) { t.p.Send(DeviceLineMsg{Text: text}) }
func (t tuiFrontEnd) NoVoice(on bool) { t.p.Send(NoVoiceMsg{On: on}) }

// Confirm shows the consent modal and waits for the answer.
func (t tuiFrontEnd) Confirm(question string) (bool, error) {
	reply := make(chan bool, 1)
	t.p.Send(ConsentMsg{Question: question, Reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-t.done:
		return false, errFrontEndClosed
	}
}

// lineFrontEnd prints events as lines for headless and test runs. Amplitude is not
// printed; it changes every meter tick.
type lineFrontEnd struct {
	mu         sync.Mutex
	w          io.Writer
	transcript string
}

func newLineFrontEnd(w io.Writer) *lineFrontEnd {
	return &lineFrontEnd{w: w}
}

func (l *lineFrontEnd) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format+"\n", args...)
}

func (l *lineFrontEnd) SetAmplitude(float64) {}

func (l *lineFrontEnd) SetTranscript(text string) {
	l.mu.Lock()
	changed := text != l.transcript
	l.transcript = text
	l.mu.Unlock()
	if changed {
		l.printf("transcript: %s", text)
	}
}

func (l *lineFrontEnd) SetBackground(c keyword.Color) { l.printf("background: %s", c) }
func (l *lineFrontEnd) SetStatus(text string) { l.printf("status: %s", text) }
func (l *lineFrontEnd) Alert(title, message string) { l.printf("alert: %s: %s", title, message) }

func (l *lineFrontEnd) NoVoice(on bool) {
	if on {
		l.printf("voice: none detected")
		return
	}
	l.printf("voice: detected")
}

// beepFrontEnd plays audio cues alongside another front end: start when listening
// begins, match on a keyword action, error on an alert.
type beepFrontEnd struct {
	frontEnd
}

func (b beepFrontEnd) SetStatus(text string) {
	if strings.HasPrefix(text, session.StatusListening) {
		beep.PlayStart()
	}
	b.frontEnd.SetStatus(text)
}

func (b beepFrontEnd) SetBackground(c keyword.Color) {
	beep.PlayMatch()
	b.frontEnd.SetBackground(c)
}

func (b beepFrontEnd) Alert(title, message string) {
	beep.PlayError()
	b.frontEnd.Alert(title, message)
}

// desktopFrontEnd is the GUI window: a front end that can also ask for consent and
// reports when the user closes it.
type desktopFrontEnd interface {
	frontEnd
	permission.Prompter
	Closed() <-chan struct{}
	Quit()
}
