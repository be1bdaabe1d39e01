package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"speechkit/log"
)

const (
	defaultDeepgramModel    = "nova-3"
	defaultDeepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultDeepgramProbe    = "https://api.deepgram.com"
	defaultProbeTimeout     = 3 * time.Second
)

type DeepgramConfig struct {
	APIKey       string
	Model        string
	Endpoint     string
	ProbeURL     string
	ProbeTimeout time.Duration
}

type Deepgram struct {
	cfg    DeepgramConfig
	lang   string
	client *TracedClient

	mu        sync.Mutex
	lastProbe *NetworkMetrics
}

// NewDeepgram returns a streaming recognizer for lang, or ErrUnsupportedLocale.
func NewDeepgram(cfg DeepgramConfig, lang string) (*Deepgram, error) {
	resolved, ok := SupportedLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, lang)
	}
	if cfg.Model == "" {
		cfg.Model = defaultDeepgramModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultDeepgramEndpoint
	}
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = defaultDeepgramProbe
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Deepgram{cfg: cfg, lang: resolved, client: NewTracedClient()}, nil
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Language() string { return d.lang }

// IsAvailable requires credentials and a reachable API host.
func (d *Deepgram) IsAvailable(ctx context.Context) bool {
	if d.cfg.APIKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.cfg.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		log.Warnf("deepgram probe failed: %v", err)
		return false
	}
	d.mu.Lock()
	d.lastProbe = resp.Metrics
	d.mu.Unlock()

	log.Infof("deepgram probe: status=%d total=%dms tls=%s request=%s",
		resp.StatusCode, resp.Metrics.Total.Milliseconds(), resp.Metrics.TLSProtocol,
		firstNonEmpty(resp.Header, "dg-request-id", "x-request-id"))
	return resp.StatusCode < http.StatusInternalServerError
}

func (d *Deepgram) RecognitionTask(ctx context.Context, req *Request, h Handler) (Task, error) {
	if req == nil || h == nil {
		return nil, fmt.Errorf("deepgram: request and handler are required")
	}
	t := newStreamTask(ctx, req, h, func(ctx context.Context) (rawStream, error) {
		return d.startStream(ctx, req.Format())
	})
	t.conn = d.probeConn
	return t, nil
}

func (d *Deepgram) probeConn() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastProbe == nil {
		return false, ""
	}
	return d.lastProbe.ConnReused, d.lastProbe.TLSProtocol
}
