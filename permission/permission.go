package permission

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"speechkit/log"
)

type Status int

const (
	NotDetermined Status = iota
	Denied
	Restricted
	Authorized
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "notDetermined"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	case Authorized:
		return "authorized"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authorized":
		return Authorized, nil
	case "denied":
		return Denied, nil
	case "restricted":
		return Restricted, nil
	case "notdetermined", "undetermined":
		return NotDetermined, nil
	}
	return NotDetermined, fmt.Errorf("unknown authorization status %q", s)
}

// Authorizer asks once whether speech recognition may be used. The callback runs on
// another goroutine.
type Authorizer interface {
	RequestAuthorization(cb func(Status))
}

// Question is what prompters ask the user.
const Question = "Allow speechkit to send microphone audio to the speech recognition service?"

// Prompter asks the user a yes/no question and blocks until answered.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// Consent resolves authorization from configuration, a stored decision, and finally
// the user.
type Consent struct {
	// Path stores the decision; empty disables persistence.
	Path       string
	Prompter   Prompter
	Restricted bool

	once   sync.Once
	status Status
}

func (c *Consent) RequestAuthorization(cb func(Status)) {
	go func() { cb(c.Resolve()) }()
}

// Resolve computes the status once and caches it.
func (c *Consent) Resolve() Status {
	c.once.Do(func() { c.status = c.resolve() })
	return c.status
}

// Stored returns the persisted decision without prompting.
func (c *Consent) Stored() (Status, bool) {
	if c.Restricted {
		return Restricted, true
	}
	if c.Path == "" {
		return NotDetermined, false
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return NotDetermined, false
	}
	s, err := ParseStatus(string(data))
	if err != nil || (s != Authorized && s != Denied) {
		return NotDetermined, false
	}
	return s, true
}

func (c *Consent) resolve() Status {
	if s, ok := c.Stored(); ok {
		return s
	}
	if c.Prompter == nil {
		return NotDetermined
	}
	ok, err := c.Prompter.Confirm(Question)
	if err != nil {
		return NotDetermined
	}
	s := Denied
	if ok {
		s = Authorized
	}
	if err := c.store(s); err != nil {
		log.Warnf("consent not saved: %v", err)
	}
	return s
}

func (c *Consent) store(s Status) error {
	if c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("create consent dir: %w", err)
	}
	if err := os.WriteFile(c.Path, []byte(s.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("write consent file: %w", err)
	}
	return nil
}

// Reset forgets the stored decision.
func (c *Consent) Reset() error {
	if c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func DefaultConsentPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "speechkit", "consent")
}

// Fixed always reports the same status.
type Fixed Status

func (f Fixed) RequestAuthorization(cb func(Status)) {
	go cb(Status(f))
}

// LinePrompter reads a y/N answer from a line-oriented stream.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p LinePrompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N] ", question)
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
