//go:build !gui

package main

import (
	"fmt"
	"os"

	"speechkit/audio"
)

// Stubs for non-GUI builds (never reached since guiMode stays false)
func guiAudioContext() audio.Context { return nil }
func guiFrontEnd() desktopFrontEnd { return nil }

func initGUI() {
	fmt.Fprintln(os.Stderr, "speechkit: built without GUI support (rebuild with -tags gui)")
	os.Exit(1)
}
