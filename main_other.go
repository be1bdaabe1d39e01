//go:build !linux

package main

import (
	"os"
	"runtime"
)

// Core Audio and the GUI toolkit both expect the process main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	// Check for -gui flag early (before flag.Parse in run())
	for _, arg := range os.Args[1:] {
		if arg == "-gui" || arg == "--gui" {
			initGUI() // takes main thread, calls run() in goroutine
			return
		}
	}
	run()
}
