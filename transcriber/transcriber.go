package transcriber

import (
	"context"
	"fmt"
)

// Event is one transcription update. Interim events are advisory and may be
// superseded; only a final event finalizes the utterance.
type Event struct {
	Text  string
	Final bool
}

// Config is the fixed recognition configuration for one session. It maps to
// the backend's {encoding: LINEAR16, sample_rate, language, punctuate,
// keywords} request surface.
type Config struct {
	SampleRate  int
	Language    string
	Punctuate   bool
	PhraseHints []string
	Model       string
}

// StreamError wraps a transcription transport failure. It is transient: the
// supervisor owns retry policy, this package never retries.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("transcription stream: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Session is one streaming recognition exchange, bound 1:1 to one capture
// session. It is not restartable. Events closes when the stream ends for any
// reason; after that, Err reports the terminal transport error, if any.
// Cancel abandons the stream immediately and is safe to call more than once;
// callers must cancel as soon as they act on a final event.
type Session interface {
	Feed(pcm []byte)
	Events() <-chan Event
	Err() error
	Cancel()
}

type Transcriber interface {
	Name() string
	Stream(ctx context.Context, cfg Config) (Session, error)
	// Recognize is the single-shot path used by the HTTP variant: one buffer
	// in, one transcript out.
	Recognize(ctx context.Context, pcm []byte, cfg Config) (string, error)
}
