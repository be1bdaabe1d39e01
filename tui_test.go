package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"speechkit/keyword"
)

func update(t *testing.T, m tuiModel, msg tea.Msg) (tuiModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(tuiModel), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTUIDisplayMessages(t *testing.T) {
	m := newTUIModel(nil)
	m, _ = update(t, m, AmplitudeMsg{Level: 0.4})
	m, _ = update(t, m, TranscriptMsg{Text: "say red"})
	m, _ = update(t, m, BackgroundMsg{Color: keyword.Red})
	m, _ = update(t, m, StatusMsg{Text: "Listening"})

	if m.amplitude != 0.4 {
		t.Errorf("amplitude = %v", m.amplitude)
	}
	if m.transcript != "say red" {
		t.Errorf("transcript = %q", m.transcript)
	}
	if !m.hasBackground || m.background != keyword.Red {
		t.Errorf("background = %v (%v)", m.background, m.hasBackground)
	}
	if m.status != "Listening" {
		t.Errorf("status = %q", m.status)
	}
}

func TestTUITickAdvancesPhase(t *testing.T) {
	m := newTUIModel(nil)
	m, cmd := update(t, m, tickMsg{})
	if cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}
	if m.phase == 0 || m.frame != 1 {
		t.Errorf("phase = %v frame = %d", m.phase, m.frame)
	}
}

func TestTUIAlertQueue(t *testing.T) {
	m := newTUIModel(nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, AlertMsg{Title: "Speech Recognizer Error", Message: "first"})
	m, _ = update(t, m, AlertMsg{Title: "Speech Recognizer Error", Message: "second"})

	view := m.View()
	if !strings.Contains(view, "first") || !strings.Contains(view, "Speech Recognizer Error") {
		t.Errorf("view does not show first alert:\n%s", view)
	}

	// Keys other than dismiss are swallowed by the modal.
	m, cmd := update(t, m, key("q"))
	if cmd != nil || len(m.alerts) != 2 {
		t.Fatalf("q under alert: cmd=%v alerts=%d", cmd, len(m.alerts))
	}

	m, _ = update(t, m, key("enter"))
	if len(m.alerts) != 1 || m.alerts[0].Message != "second" {
		t.Fatalf("alerts after enter = %+v", m.alerts)
	}
	m, _ = update(t, m, key("esc"))
	if len(m.alerts) != 0 {
		t.Fatalf("alerts after esc = %+v", m.alerts)
	}
}

func TestTUIConsent(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"n", false},
		{"esc", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			reply := make(chan bool, 1)
			m := newTUIModel(nil)
			m, _ = update(t, m, ConsentMsg{Question: "Allow?", Reply: reply})
			m, _ = update(t, m, key("x"))
			select {
			case <-reply:
				t.Fatal("unrelated key answered consent")
			default:
			}
			m, _ = update(t, m, key(tt.key))
			if got := <-reply; got != tt.want {
				t.Errorf("reply = %v, want %v", got, tt.want)
			}
			if m.consent != nil {
				t.Error("consent still open")
			}
		})
	}
}

func TestTUIQuitDeniesPendingConsent(t *testing.T) {
	reply := make(chan bool, 1)
	m := newTUIModel(nil)
	m, _ = update(t, m, ConsentMsg{Question: "Allow?", Reply: reply})
	_, cmd := update(t, m, key("ctrl+c"))
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not return tea.Quit")
	}
	if got := <-reply; got {
		t.Error("pending consent granted on quit")
	}
}

func TestTUICopy(t *testing.T) {
	var copied string
	m := newTUIModel(func(s string) error {
		copied = s
		return nil
	})

	if _, cmd := update(t, m, key("c")); cmd != nil {
		t.Error("copy with empty transcript should do nothing")
	}

	m, _ = update(t, m, TranscriptMsg{Text: "hello green"})
	m, cmd := update(t, m, key("c"))
	if cmd == nil {
		t.Fatal("expected copy command")
	}
	m, _ = update(t, m, cmd())
	if copied != "hello green" || !m.copied {
		t.Errorf("copied = %q flag = %v", copied, m.copied)
	}

	m.copy = func(string) error { return errors.New("no clipboard") }
	m, cmd = update(t, m, key("c"))
	m, _ = update(t, m, cmd())
	if m.copied || m.copyErr != "no clipboard" {
		t.Errorf("copy failure state: copied=%v err=%q", m.copied, m.copyErr)
	}
}

func TestTUIView(t *testing.T) {
	m := newTUIModel(nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("view before size = %q", got)
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})
	m, _ = update(t, m, TranscriptMsg{Text: "black"})
	m, _ = update(t, m, BackgroundMsg{Color: keyword.Black})
	m, _ = update(t, m, StatusMsg{Text: "Listening (fake, en-US)"})

	view := m.View()
	for _, want := range []string{"black", "Listening (fake, en-US)", "[q] quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if n := strings.Count(view, "\n") + 1; n != 20 {
		t.Errorf("view has %d lines, want 20", n)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("the quick brown fox", 10)
	want := []string{"the quick", "brown fox"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrapText = %q", got)
	}
}
