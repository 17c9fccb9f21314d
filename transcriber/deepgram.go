package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	deepgramStreamURL = "wss://api.deepgram.com/v1/listen"
	deepgramBatchURL  = "https://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
)

type Deepgram struct {
	apiKey string
	client *http.Client
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		apiKey: apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        1,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) query(cfg Config) url.Values {
	q := url.Values{}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	if cfg.Punctuate {
		q.Set("punctuate", "true")
	}
	for _, hint := range cfg.PhraseHints {
		q.Add("keywords", hint)
	}
	return q
}

func (d *Deepgram) Stream(ctx context.Context, cfg Config) (Session, error) {
	return newStreamSession(func() (rawStream, error) {
		return d.dial(ctx, cfg)
	}), nil
}

type deepgramStreamResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (d *Deepgram) dial(ctx context.Context, cfg Config) (rawStream, error) {
	endpoint, err := url.Parse(deepgramStreamURL)
	if err != nil {
		return nil, err
	}
	endpoint.RawQuery = d.query(cfg).Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, endpoint.String(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, err
	}

	return &deepgramStream{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStream) Recv() (streamUpdate, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return streamUpdate{}, err
	}

	var resp deepgramStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streamUpdate{}, err
	}

	transcript := ""
	if len(resp.Channel.Alternatives) > 0 {
		transcript = resp.Channel.Alternatives[0].Transcript
	}

	return streamUpdate{
		Transcript:  strings.TrimSpace(transcript),
		IsFinal:     resp.IsFinal,
		SpeechFinal: resp.SpeechFinal,
	}, nil
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

type deepgramBatchResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Recognize submits one raw LINEAR16 buffer and returns the transcript.
func (d *Deepgram) Recognize(ctx context.Context, pcm []byte, cfg Config) (string, error) {
	endpoint, err := url.Parse(deepgramBatchURL)
	if err != nil {
		return "", err
	}
	endpoint.RawQuery = d.query(cfg).Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &StreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StreamError{Err: fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(body))}
	}

	var dgResp deepgramBatchResponse
	if err := json.Unmarshal(body, &dgResp); err != nil {
		return "", fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		text = dgResp.Results.Channels[0].Alternatives[0].Transcript
	}
	return strings.TrimSpace(text), nil
}
