package speech

import "context"

// FakeSynthesizer returns canned PCM proportional to the input length so
// tests can assert on duration without a network call.
type FakeSynthesizer struct {
	Err error

	// Texts records every synthesized string.
	Texts []string
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text string) (Audio, error) {
	f.Texts = append(f.Texts, text)
	if f.Err != nil {
		return Audio{}, &SynthesisError{Err: f.Err}
	}
	// 50 ms of silence per character, 16-bit mono.
	frames := (1 + len(text)) * OutputSampleRate / 20
	return Audio{
		PCM:        make([]byte, frames*2),
		SampleRate: OutputSampleRate,
		Channels:   1,
	}, nil
}

// FakePlayer records playback without touching a device.
type FakePlayer struct {
	Err error

	Played []Audio
}

func (f *FakePlayer) Play(_ context.Context, a Audio) error {
	f.Played = append(f.Played, a)
	if f.Err != nil {
		return &SynthesisError{Err: f.Err}
	}
	return nil
}

func (f *FakePlayer) Close() {}
