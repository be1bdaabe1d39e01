package transcriber

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

var ErrUnsupportedLocale = errors.New("speech recognition is not supported for locale")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Segment is one recognized word. Duration is zero until the word is finalized.
// Text is the bare word used for keyword matching; Display is the recognizer's
// formatted form of it (punctuation, casing) and may be empty.
type Segment struct {
	Text     string
	Display  string
	Start    time.Duration
	Duration time.Duration
	Final    bool
}

// DisplayText is the formatted word, falling back to Text.
func (s Segment) DisplayText() string {
	if s.Display != "" {
		return s.Display
	}
	return s.Text
}

// Result is the best transcription so far: every finalized segment followed by the
// current interim hypothesis.
type Result struct {
	Transcript string
	Segments   []Segment
	IsFinal    bool
}

// LastFinalized returns the most recent finalized segment.
func (r *Result) LastFinalized() (Segment, bool) {
	for i := len(r.Segments) - 1; i >= 0; i-- {
		if r.Segments[i].Final {
			return r.Segments[i], true
		}
	}
	return Segment{}, false
}

// Handler receives every update of a recognition task. Exactly one of result and
// err is non-nil. After an error the task delivers nothing more.
type Handler func(result *Result, err error)

type Task interface {
	// Cancel stops the task and waits for its goroutines; no handler call follows.
	Cancel()
	Done() <-chan struct{}
}

type Recognizer interface {
	Name() string
	Language() string
	IsAvailable(ctx context.Context) bool
	RecognitionTask(ctx context.Context, req *Request, h Handler) (Task, error)
}

// Deepgram nova-3 streaming languages.
var supportedLanguages = []string{
	"bg", "ca", "cs", "da", "da-DK", "de", "de-CH", "el",
	"en", "en-AU", "en-GB", "en-IN", "en-NZ", "en-US",
	"es", "es-419", "et", "fi", "fr", "fr-CA", "hi", "hu",
	"id", "it", "ja", "ko", "ko-KR", "lt", "lv", "ms", "multi",
	"nl", "nl-BE", "no", "pl", "pt", "pt-BR", "pt-PT", "ro", "ru",
	"sk", "sv", "sv-SE", "tr", "uk", "vi",
}

// NormalizeLanguage maps POSIX style locales ("en_US.UTF-8") to BCP 47 tags.
func NormalizeLanguage(lang string) string {
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ReplaceAll(lang, "_", "-")
}

// SupportedLanguage resolves lang to a supported tag, falling back from a region
// variant to its base language.
func SupportedLanguage(lang string) (string, bool) {
	lang = NormalizeLanguage(lang)
	if lang == "" {
		return "", false
	}
	for _, l := range supportedLanguages {
		if strings.EqualFold(l, lang) {
			return l, true
		}
	}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		for _, l := range supportedLanguages {
			if strings.EqualFold(l, base) {
				return l, true
			}
		}
	}
	return "", false
}

func SupportedLanguages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}
