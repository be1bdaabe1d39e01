//go:build windows

package doctor

func resetTerminal() {
	// Not needed on Windows
}
