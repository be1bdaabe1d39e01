package clipboard

import (
	"errors"
	"testing"
)

func TestCopyEmpty(t *testing.T) {
	if err := Copy(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Copy(\"\") = %v, want ErrEmpty", err)
	}
}

func TestCopyRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard backend")
	}
	if err := Copy("speechkit-clipboard-test"); err != nil {
		t.Skipf("clipboard not writable here: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != "speechkit-clipboard-test" {
		t.Errorf("Read = %q", got)
	}
}
