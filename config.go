package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultSampleRate = 44100
	defaultLanguage   = "en-US"
)

// Config collects everything the process reads from the environment. It
// is built once in main and handed to each component; nothing reads env
// vars after startup.
type Config struct {
	GeminiAPIKey    string
	DeepgramAPIKey  string
	GoogleTTSAPIKey string
	SampleRate      int
	Language        string
	SttModel        string // empty picks the recognizer's default
	PhraseHints     []string
}

// loadConfig reads .env (if present) and then the environment.
func loadConfig() (Config, error) {
	godotenv.Load()

	cfg := Config{
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		DeepgramAPIKey:  os.Getenv("DEEPGRAM_API_KEY"),
		GoogleTTSAPIKey: os.Getenv("GOOGLE_TTS_API_KEY"),
		SampleRate:      defaultSampleRate,
		Language:        defaultLanguage,
	}

	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid SAMPLE_RATE %q", v)
		}
		cfg.SampleRate = rate
	}
	if v := os.Getenv("LANGUAGE"); v != "" {
		cfg.Language = v
	}
	cfg.SttModel = os.Getenv("DEEPGRAM_MODEL")
	if v := os.Getenv("VOICEDESK_PHRASE_HINTS"); v != "" {
		for _, hint := range strings.Split(v, ",") {
			if hint = strings.TrimSpace(hint); hint != "" {
				cfg.PhraseHints = append(cfg.PhraseHints, hint)
			}
		}
	}
	return cfg, nil
}

// validate checks the keys every mode needs.
func (c Config) validate() error {
	var missing []string
	if c.DeepgramAPIKey == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.GoogleTTSAPIKey == "" {
		missing = append(missing, "GOOGLE_TTS_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
