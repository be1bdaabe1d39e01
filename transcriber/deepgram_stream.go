package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
)

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
			Words      []struct {
				Word           string  `json:"word"`
				PunctuatedWord string  `json:"punctuated_word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *Deepgram) streamURL(format Format) (string, error) {
	endpoint, err := url.Parse(d.cfg.Endpoint)
	if err != nil {
		return "", err
	}

	q := endpoint.Query()
	model := d.cfg.Model
	if model == "" {
		model = defaultDeepgramModel
	}
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", format.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", format.Channels))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) startStream(ctx context.Context, format Format) (rawStream, error) {
	endpoint, err := d.streamURL(format)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, err
	}
	conn.SetReadLimit(1 << 20)

	return &deepgramStream{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

// CloseSend asks the server to flush final results and close the stream.
func (s *deepgramStream) CloseSend() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
}

func (s *deepgramStream) Recv() (streamUpdate, error) {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return streamUpdate{}, io.EOF
			}
			return streamUpdate{}, err
		}

		update, ok, err := parseDeepgramMessage(data)
		if err != nil {
			return streamUpdate{}, err
		}
		if ok {
			return update, nil
		}
	}
}

// parseDeepgramMessage decodes a Results message. Metadata, SpeechStarted and
// UtteranceEnd messages report ok == false.
func parseDeepgramMessage(data []byte) (streamUpdate, bool, error) {
	var resp deepgramStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streamUpdate{}, false, fmt.Errorf("deepgram message parse error: %w", err)
	}
	if resp.Type != "" && resp.Type != "Results" {
		return streamUpdate{}, false, nil
	}

	update := streamUpdate{
		IsFinal:      resp.IsFinal,
		SpeechFinal:  resp.SpeechFinal,
		FromFinalize: resp.FromFinalize,
	}
	if len(resp.Channel.Alternatives) > 0 {
		alt := resp.Channel.Alternatives[0]
		update.Transcript = strings.TrimSpace(alt.Transcript)
		for _, w := range alt.Words {
			update.Words = append(update.Words, streamWord{Text: w.Word, Display: w.PunctuatedWord, Start: w.Start, End: w.End})
		}
	}
	return update, true, nil
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
