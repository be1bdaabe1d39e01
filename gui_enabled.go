//go:build gui

package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"speechkit/audio"
	"speechkit/gui"
)

var guiApp *gui.App

// Audio context initialized on main thread for macOS Core Audio compatibility
var guiAudioCtx audio.Context

func guiAudioContext() audio.Context { return guiAudioCtx }
func guiFrontEnd() desktopFrontEnd { return guiApp }

func initGUI() {
	guiMode = true

	// Initialize audio context on main thread BEFORE Fyne starts.
	var err error
	guiAudioCtx, err = audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}

	// Lock this goroutine to OS thread for Fyne/GLFW
	runtime.LockOSThread()

	guiApp = gui.NewApp(run)
	if err := gui.Run(guiApp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Window closed: let run release the capture session before exiting.
	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
	}
}
