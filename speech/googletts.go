package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicedesk/audio"
)

const (
	googleTTSURL = "https://texttospeech.googleapis.com/v1/text:synthesize"

	// Fixed voice configuration, not user-tunable.
	voiceName    = "en-US-Studio-O"
	languageCode = "en-US"
	speakingRate = 1.5
	// OutputSampleRate is what the backend renders at. Playback and the
	// server WAV wrapper both depend on it.
	OutputSampleRate = 24000
)

type GoogleTTS struct {
	apiKey string
	url    string
	client *http.Client
}

func NewGoogleTTS(apiKey string) *GoogleTTS {
	return &GoogleTTS{
		apiKey: apiKey,
		url:    googleTTSURL,
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

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SpeakingRate    float64 `json:"speakingRate"`
		SampleRateHertz int     `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders text to 16-bit mono PCM at OutputSampleRate. The
// backend wraps LINEAR16 output in a WAV container; the header is
// stripped so callers get raw samples.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) (Audio, error) {
	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = languageCode
	reqBody.Voice.Name = voiceName
	reqBody.AudioConfig.AudioEncoding = "LINEAR16"
	reqBody.AudioConfig.SpeakingRate = speakingRate
	reqBody.AudioConfig.SampleRateHertz = OutputSampleRate

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Audio{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.url+"?key="+g.apiKey, bytes.NewReader(payload))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Audio{}, &SynthesisError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, &SynthesisError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Audio{}, &SynthesisError{Err: fmt.Errorf("text-to-speech API error %d: %s", resp.StatusCode, string(body))}
	}

	var ttsResp synthesizeResponse
	if err := json.Unmarshal(body, &ttsResp); err != nil {
		return Audio{}, &SynthesisError{Err: fmt.Errorf("response parse error: %w", err)}
	}

	wav, err := base64.StdEncoding.DecodeString(ttsResp.AudioContent)
	if err != nil {
		return Audio{}, &SynthesisError{Err: fmt.Errorf("audio content decode error: %w", err)}
	}
	if len(wav) <= audio.WAVHeaderSize {
		return Audio{}, &SynthesisError{Err: fmt.Errorf("audio content too short: %d bytes", len(wav))}
	}

	return Audio{
		PCM:        wav[audio.WAVHeaderSize:],
		SampleRate: OutputSampleRate,
		Channels:   1,
	}, nil
}
