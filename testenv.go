package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"speechkit/session"
)

// testTail is how long test mode keeps running after the WAV has been replayed, so
// the last scripted results reach the controller.
const testTail = 500 * time.Millisecond

// driveTest reads commands from in until QUIT or EOF, then prints the final state and
// cancels the session. Commands: SLEEP <ms>, WAIT (until the WAV has played), STATE.
// On EOF it waits for the WAV as if WAIT had been sent.
func driveTest(ctx context.Context, cancel context.CancelFunc, ctrl *session.Controller, audioLen time.Duration, in io.Reader, out io.Writer) {
	defer cancel()
	deadline := time.Now().Add(audioLen + testTail)

	sleep := func(d time.Duration) bool {
		if d <= 0 {
			return true
		}
		select {
		case <-time.After(d):
			return true
		case <-ctx.Done():
			return false
		}
	}
	printState := func() {
		s, ok := ctrl.Snapshot(ctx)
		if !ok {
			return
		}
		fmt.Fprintln(out, formatSnapshot(s))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var cmd string
		var ok bool
		select {
		case cmd, ok = <-lines:
		case <-ctx.Done():
			return
		}
		if !ok {
			cmd = "WAIT"
		}

		switch {
		case cmd == "WAIT":
			if !sleep(time.Until(deadline)) {
				return
			}
			if !ok {
				printState()
				return
			}
		case cmd == "STATE":
			printState()
		case cmd == "QUIT":
			printState()
			return
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				if !sleep(time.Duration(ms) * time.Millisecond) {
					return
				}
			}
		}
	}
}

func formatSnapshot(s session.Snapshot) string {
	bg := "none"
	if s.HasBackground {
		bg = s.Background.String()
	}
	return fmt.Sprintf("state: %s watermark=%s background=%s keyword_actions=%d",
		s.State, s.Watermark, bg, s.KeywordActions)
}
