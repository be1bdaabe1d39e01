//go:build gui

package gui

import (
	"errors"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"speechkit/keyword"
)

var ErrClosed = errors.New("window closed")

type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	background *canvas.Rectangle
	override   *container.ThemeOverride
	wave       *WaveWidget
	transcript *widget.Label
	status     *widget.Label
	warning    *widget.Label
	onReady    func()

	closed    chan struct{}
	closeOnce sync.Once
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady, closed: make(chan struct{})}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.speechkit.gui")
	a.fyneApp.Settings().SetTheme(newSpeechTheme(initialBackground, false))

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("speechkit",
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(theme.MediaRecordIcon())
	}

	a.window = a.fyneApp.NewWindow("speechkit")
	a.background = canvas.NewRectangle(initialBackground.RGBA())
	a.wave = NewWaveWidget()
	a.transcript = widget.NewLabel("Say \"green\", \"red\" or \"black\"")
	a.transcript.Wrapping = fyne.TextWrapWord
	a.transcript.Alignment = fyne.TextAlignCenter
	a.status = widget.NewLabel("")
	a.status.Alignment = fyne.TextAlignCenter
	a.warning = widget.NewLabel("")
	a.warning.Alignment = fyne.TextAlignCenter
	a.warning.Importance = widget.WarningImportance

	body := container.NewBorder(nil, container.NewVBox(a.warning, a.status), nil, nil, container.NewVBox(a.wave, a.transcript))
	a.override = container.NewThemeOverride(body, newSpeechTheme(initialBackground, false))
	a.window.SetContent(container.NewStack(a.background, a.override))
	a.window.Resize(fyne.NewSize(520, 380))
	a.window.SetMaster()

	go a.onReady()

	a.window.ShowAndRun()
	a.markClosed()
	return nil
}

func (a *App) markClosed() {
	a.closeOnce.Do(func() {
		a.wave.Stop()
		close(a.closed)
	})
}

// Closed is closed once the window has gone away.
func (a *App) Closed() <-chan struct{} { return a.closed }

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

// Display implementation. The wave widget locks internally; everything else is
// handed to the UI goroutine.
func (a *App) SetAmplitude(amplitude float64) {
	a.wave.SetAmplitude(amplitude)
}

func (a *App) SetTranscript(text string) {
	fyne.Do(func() {
		a.transcript.SetText(text)
	})
}

func (a *App) SetBackground(c keyword.Color) {
	a.wave.SetBackground(c)
	fyne.Do(func() {
		a.background.FillColor = c.RGBA()
		a.background.Refresh()
		a.override.Theme = newSpeechTheme(c, true)
		a.override.Refresh()
	})
}

func (a *App) SetStatus(text string) {
	fyne.Do(func() {
		a.status.SetText(text)
	})
}

func (a *App) Alert(title, message string) {
	fyne.Do(func() {
		dialog.ShowInformation(title, message, a.window)
	})
}

func (a *App) NoVoice(on bool) {
	text := ""
	if on {
		text = "no voice detected"
	}
	fyne.Do(func() {
		a.warning.SetText(text)
	})
}

// Confirm asks question in a modal dialog and blocks until it is answered.
func (a *App) Confirm(question string) (bool, error) {
	reply := make(chan bool, 1)
	fyne.Do(func() {
		dialog.ShowConfirm("Speech Recognition", question, func(ok bool) {
			reply <- ok
		}, a.window)
	})
	select {
	case ok := <-reply:
		return ok, nil
	case <-a.closed:
		return false, ErrClosed
	}
}
