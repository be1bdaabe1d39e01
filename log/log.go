package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscriptFile  = "transcript_log.txt"
	CrashFile       = "crash_log.txt"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	sessionID      string
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: SPEECHKIT_LOG_PATH environment variable
	if envPath := os.Getenv("SPEECHKIT_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()
	sessionID = uuid.NewString()

	var err error

	diagFile, err = os.OpenFile(filepath.Join(dir, DiagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptFile, err = os.OpenFile(filepath.Join(dir, TranscriptFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().
		Timestamp().
		Int("pid", pid).
		Str("session", sessionID).
		Logger()

	logReady = true
	return nil
}

// SessionID identifies this run in every diagnostics entry. Empty before Init.
func SessionID() string {
	logMu.Lock()
	defer logMu.Unlock()
	return sessionID
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

// OpenCrashFile opens crash_log.txt in the log directory for debug.SetCrashOutput.
func OpenCrashFile() (*os.File, error) {
	if err := EnsureDir(); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, CrashFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func TranscriptText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}

func SessionStart(provider, language, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("language", language).
		Str("device", device).
		Msg("session_start")
}

func Authorization(status string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("status", status).Msg("authorization")
}

func RecorderOpen(encoding string, sampleRate, channels uint32, destination string, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Error().Err(err)
	}
	ev.Str("encoding", encoding).
		Uint32("sample_rate", sampleRate).
		Uint32("channels", channels).
		Str("destination", destination).
		Msg("recorder_open")
}

func RecognitionStart(recognizer, language string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("recognizer", recognizer).
		Str("language", language).
		Msg("recognition_start")
}

func KeywordAction(keyword, color string, watermark time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("keyword", keyword).
		Str("color", color).
		Float64("watermark_s", watermark.Seconds()).
		Msg("keyword_action")
}

func Alert(title, message string) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("title", title).
		Str("message", message).
		Msg("alert")
}

type StreamMetricsData struct {
	ConnectMs    float64
	TotalMs      float64
	AudioS       float64
	SentChunks   int
	SentKB       float64
	DroppedKB    float64
	RecvMessages int
	RecvFinal    int
	ConnReused   bool
	TLSProto     string
}

func StreamMetrics(m StreamMetricsData) {
	if !logReady {
		return
	}
	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}
	ev := diagLog.Info().Str("conn", connStatus)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	ev.Float64("connect_ms", m.ConnectMs).
		Float64("total_ms", m.TotalMs).
		Float64("audio_s", m.AudioS).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Float64("dropped_kb", m.DroppedKB).
		Int("recv_messages", m.RecvMessages).
		Int("recv_final", m.RecvFinal).
		Msg("stream_metrics")
}

func SessionEnd(state string, keywordActions int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("state", state).
		Int("keyword_actions", keywordActions).
		Msg("session_end")
}
