package session

import "fmt"

type State int

const (
	Uninitialized State = iota
	AwaitingAuthorization
	Denied
	Restricted
	Undetermined
	Capturing
	Recognizing
	RecognitionFailed
)

var stateNames = [...]string{
	"uninitialized",
	"awaitingAuthorization",
	"denied",
	"restricted",
	"undetermined",
	"capturing",
	"recognizing",
	"recognitionFailed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	switch s {
	case Denied, Restricted, Undetermined, RecognitionFailed:
		return true
	}
	return false
}

var transitions = map[State][]State{
	Uninitialized:         {AwaitingAuthorization},
	AwaitingAuthorization: {Denied, Restricted, Undetermined, Capturing},
	Capturing:             {Recognizing, RecognitionFailed},
	Recognizing:           {RecognitionFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
