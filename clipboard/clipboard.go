package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var (
	ErrUnsupported = errors.New("clipboard not available on this system")
	ErrEmpty       = errors.New("nothing to copy")
)

// Available reports whether a clipboard backend (pbcopy, xclip, xsel, wl-copy,
// Windows API) was found.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Copy puts the transcript on the system clipboard.
func Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if !Available() {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}
