package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"speechkit/keyword"
	"speechkit/wave"
)

// TUI message types
type AmplitudeMsg struct{ Level float64 }
type TranscriptMsg struct{ Text string }
type BackgroundMsg struct{ Color keyword.Color }
type StatusMsg struct{ Text string }
type AlertMsg struct{ Title, Message string }
type ModeLineMsg struct{ Text string }   // recognizer and language
type DeviceLineMsg struct{ Text string } // microphone device name
type NoVoiceMsg struct{ On bool }

// ConsentMsg opens the permission modal. Reply receives exactly one answer.
type ConsentMsg struct {
	Question string
	Reply    chan<- bool
}

type copiedMsg struct{ err error }
type tickMsg time.Time

const waveRows = 9

type tuiModel struct {
	frame         int
	phase         float64
	amplitude     float64
	width, height int

	transcript    string
	background    keyword.Color
	hasBackground bool
	status        string
	modeLine      string
	deviceLine    string
	copied        bool
	copyErr       string
	noVoice       bool

	alerts  []AlertMsg
	consent *ConsentMsg

	copy func(string) error
}

func newTUIModel(copyFn func(string) error) tuiModel {
	return tuiModel{copy: copyFn}
}

func NewTUIProgram(copyFn func(string) error) *tea.Program {
	return tea.NewProgram(newTUIModel(copyFn), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		m.phase += wave.PhaseShift
		return m, tuiTick()

	case AmplitudeMsg:
		m.amplitude = msg.Level

	case TranscriptMsg:
		m.transcript = msg.Text
		m.copied = false

	case BackgroundMsg:
		m.background = msg.Color
		m.hasBackground = true

	case StatusMsg:
		m.status = msg.Text

	case AlertMsg:
		m.alerts = append(m.alerts, msg)

	case ConsentMsg:
		if m.consent != nil {
			m.consent.Reply <- false
		}
		m.consent = &msg

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case NoVoiceMsg:
		m.noVoice = msg.On

	case copiedMsg:
		m.copied = msg.err == nil
		m.copyErr = ""
		if msg.err != nil {
			m.copyErr = msg.err.Error()
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.answerConsent(false)
		return m, tea.Quit
	}

	if m.consent != nil {
		switch key {
		case "y", "Y":
			m.answerConsent(true)
		case "n", "N", "esc", "enter":
			m.answerConsent(false)
		}
		return m, nil
	}

	if len(m.alerts) > 0 {
		switch key {
		case "enter", "esc", " ":
			m.alerts = m.alerts[1:]
		}
		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "c":
		if m.transcript == "" || m.copy == nil {
			return m, nil
		}
		text, copyFn := m.transcript, m.copy
		return m, func() tea.Msg { return copiedMsg{err: copyFn(text)} }
	}
	return m, nil
}

func (m *tuiModel) answerConsent(ok bool) {
	if m.consent == nil {
		return
	}
	m.consent.Reply <- ok
	m.consent = nil
}

// tuiTheme holds styles that all paint the current background so the fill is not
// broken by ANSI resets between segments.
type tuiTheme struct {
	base    lipgloss.Style
	text    lipgloss.Style
	dim     lipgloss.Style
	palette []lipgloss.Style
	pair    [][]lipgloss.Style
}

func hexColor(c keyword.Color) lipgloss.Color { return lipgloss.Color(c.String()) }

func newTUITheme(bg keyword.Color, hasBackground bool) tuiTheme {
	base := lipgloss.NewStyle()
	textColor, dimColor := lipgloss.Color("252"), lipgloss.Color("241")
	if hasBackground {
		base = base.Background(hexColor(bg))
		if bg.Dark() {
			textColor, dimColor = lipgloss.Color("#ffffff"), lipgloss.Color("#bbbbbb")
		} else {
			textColor, dimColor = lipgloss.Color("#000000"), lipgloss.Color("#444444")
		}
	}

	colors := wave.Palette(wave.Foreground(bg, hasBackground), bg)
	th := tuiTheme{
		base:    base,
		text:    base.Foreground(textColor),
		dim:     base.Foreground(dimColor),
		palette: make([]lipgloss.Style, len(colors)),
		pair:    make([][]lipgloss.Style, len(colors)),
	}
	for i, c := range colors {
		th.palette[i] = base.Foreground(hexColor(c))
		th.pair[i] = make([]lipgloss.Style, len(colors))
		for j, under := range colors {
			th.pair[i][j] = lipgloss.NewStyle().Foreground(hexColor(c)).Background(hexColor(under))
		}
	}
	return th
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	th := newTUITheme(m.background, m.hasBackground)

	if m.consent != nil {
		return m.modal("Speech Recognition", m.consent.Question, "[y] allow   [n] deny")
	}
	if len(m.alerts) > 0 {
		a := m.alerts[0]
		footer := "[enter] OK"
		if n := len(m.alerts) - 1; n > 0 {
			footer += fmt.Sprintf("   (%d more)", n)
		}
		return m.modal(a.Title, a.Message, footer)
	}

	body := []string{th.base.Width(m.width).Render("")}
	body = append(body, renderWave(th, m.width, waveRows, m.phase, m.amplitude)...)

	lines := []string{""}

	if m.transcript != "" {
		text := m.transcript
		for _, line := range wrapText(text, max(m.width-4, 10)) {
			lines = append(lines, "  "+line)
		}
		if m.copied {
			lines = append(lines, "  [copied]")
		}
	} else {
		lines = append(lines, "  Say \"green\", \"red\" or \"black\"")
	}
	if m.copyErr != "" {
		lines = append(lines, "  copy failed: "+m.copyErr)
	}
	lines = append(lines, "")

	for _, line := range lines {
		body = append(body, th.text.Width(m.width).Render(line))
	}

	var info []string
	if m.noVoice {
		info = append(info, "⚠ no voice detected")
	}
	if m.status != "" {
		info = append(info, m.status)
	}
	if m.modeLine != "" {
		info = append(info, m.modeLine)
	}
	if m.deviceLine != "" {
		info = append(info, m.deviceLine)
	}
	info = append(info, "[c] copy transcript   [q] quit   speechkit "+version)
	for _, line := range info {
		body = append(body, th.dim.Width(m.width).Render("  "+line))
	}

	for len(body) < m.height {
		body = append(body, th.base.Width(m.width).Render(""))
	}
	if len(body) > m.height {
		body = body[:m.height]
	}
	return strings.Join(body, "\n")
}

func (m tuiModel) modal(title, message, footer string) string {
	w := min(max(m.width-8, 20), 60)
	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(title),
		"",
		strings.Join(wrapText(message, w-4), "\n"),
		"",
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(footer),
	)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(0, 1).
		Width(w).
		Render(content)

	opts := []lipgloss.WhitespaceOption{}
	if m.hasBackground {
		opts = append(opts, lipgloss.WithWhitespaceBackground(hexColor(m.background)))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box, opts...)
}

// renderWave draws rows terminal lines using half blocks, two grid pixels per cell.
func renderWave(th tuiTheme, width, rows int, phase, amplitude float64) []string {
	pixels := wave.Grid(width, rows*2, phase, amplitude)
	out := make([]string, rows)
	var b strings.Builder
	for cy := 0; cy < rows; cy++ {
		b.Reset()
		top, bot := pixels[cy*2], pixels[cy*2+1]
		for cx := 0; cx < width; cx++ {
			t, u := top[cx], bot[cx]
			switch {
			case t == 0 && u == 0:
				b.WriteString(th.base.Render(" "))
			case t == u:
				b.WriteString(th.palette[t].Render("█"))
			case u == 0:
				b.WriteString(th.palette[t].Render("▀"))
			case t == 0:
				b.WriteString(th.palette[u].Render("▄"))
			default:
				b.WriteString(th.pair[t][u].Render("▀"))
			}
		}
		out[cy] = b.String()
	}
	return out
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
