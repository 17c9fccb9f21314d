package transcriber

import (
	"context"
	"net"
	"sync"
	"time"
)

// FakeScript drives one fake stream session: scripted events, then an
// optional terminal transport error.
type FakeScript struct {
	DialErr error
	Events  []Event
	Err     error
}

// Fake plays back scripted sessions through the real stream session
// machinery. Scripts are consumed in order; when exhausted, the last one
// repeats.
type Fake struct {
	Scripts      []FakeScript
	Text         string
	RecognizeErr error
	Delay        time.Duration

	mu   sync.Mutex
	next int
}

func NewFake(events ...Event) *Fake {
	return &Fake{Scripts: []FakeScript{{Events: events}}}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) take() FakeScript {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Scripts) == 0 {
		return FakeScript{}
	}
	script := f.Scripts[min(f.next, len(f.Scripts)-1)]
	f.next++
	return script
}

func (f *Fake) Stream(_ context.Context, _ Config) (Session, error) {
	script := f.take()
	delay := f.Delay
	return newStreamSession(func() (rawStream, error) {
		if script.DialErr != nil {
			return nil, script.DialErr
		}
		return &fakeRaw{script: script, delay: delay, closed: make(chan struct{})}, nil
	}), nil
}

func (f *Fake) Recognize(_ context.Context, _ []byte, _ Config) (string, error) {
	if f.RecognizeErr != nil {
		return "", f.RecognizeErr
	}
	return f.Text, nil
}

type fakeRaw struct {
	script    FakeScript
	delay     time.Duration
	pos       int
	closed    chan struct{}
	closeOnce sync.Once
}

func (r *fakeRaw) Send([]byte) error { return nil }

func (r *fakeRaw) Recv() (streamUpdate, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-r.closed:
			return streamUpdate{}, net.ErrClosed
		}
	}
	select {
	case <-r.closed:
		return streamUpdate{}, net.ErrClosed
	default:
	}

	if r.pos < len(r.script.Events) {
		ev := r.script.Events[r.pos]
		r.pos++
		return streamUpdate{Transcript: ev.Text, IsFinal: ev.Final}, nil
	}
	if r.script.Err != nil {
		return streamUpdate{}, r.script.Err
	}
	<-r.closed
	return streamUpdate{}, net.ErrClosed
}

func (r *fakeRaw) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}
