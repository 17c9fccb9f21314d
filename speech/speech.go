package speech

import (
	"context"
	"fmt"
)

// Audio is raw 16-bit little-endian PCM ready for playback.
type Audio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration in whole milliseconds, for logging.
func (a Audio) DurationMs() int64 {
	if a.SampleRate == 0 || a.Channels == 0 {
		return 0
	}
	frames := len(a.PCM) / (2 * a.Channels)
	return int64(frames) * 1000 / int64(a.SampleRate)
}

// SynthesisError wraps a TTS or playback failure. The conversation
// continues without a spoken reply rather than restarting the session.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Player performs blocking playback: Play returns only once the audio has
// fully drained through the output device, so a caller can safely reopen
// the microphone afterwards.
type Player interface {
	Play(ctx context.Context, a Audio) error
	Close()
}
