package transcriber

import (
	"strings"
	"sync"
)

type rawStream interface {
	Send(pcm []byte) error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript  string
	IsFinal     bool
	SpeechFinal bool
}

// streamSession pumps audio to the backend on one goroutine and reads updates
// on another. The dial happens asynchronously so the caller can start feeding
// immediately; a dial failure surfaces through Err after Events closes.
type streamSession struct {
	raw rawStream

	audioCh   chan []byte
	events    chan Event
	connected chan struct{}
	cancelled chan struct{}
	done      chan struct{}

	cancelOnce sync.Once

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	closing bool
}

func newStreamSession(dial func() (rawStream, error)) *streamSession {
	s := &streamSession{
		audioCh:   make(chan []byte, 128),
		events:    make(chan Event, 16),
		connected: make(chan struct{}),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}

	go func() {
		raw, err := dial()
		if err != nil {
			s.fail(err)
			close(s.connected)
			close(s.events)
			close(s.done)
			return
		}
		s.raw = raw
		close(s.connected)
		go s.runSender()
		go s.runReceiver()
	}()

	return s
}

func (s *streamSession) Feed(pcm []byte) {
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	select {
	case s.audioCh <- chunk:
	case <-s.cancelled:
	case <-s.done:
	}
}

func (s *streamSession) Events() <-chan Event { return s.events }

func (s *streamSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *streamSession) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancelled)
		<-s.connected
		if s.raw != nil {
			s.mu.Lock()
			s.closing = true
			s.mu.Unlock()
			s.raw.Close()
		}
	})
}

func (s *streamSession) runSender() {
	for {
		select {
		case chunk := <-s.audioCh:
			if err := s.raw.Send(chunk); err != nil {
				s.fail(err)
				return
			}
		case <-s.cancelled:
			return
		case <-s.done:
			return
		}
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.done)
	defer close(s.events)
	for {
		update, err := s.raw.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing {
				s.fail(err)
			}
			return
		}

		text := strings.TrimSpace(update.Transcript)
		if text == "" {
			// Silence segments arrive as empty transcripts, final or not.
			// Suppressing them keeps the consumer listening instead of
			// finalizing an empty utterance.
			continue
		}

		ev := Event{Text: text, Final: update.IsFinal || update.SpeechFinal}
		select {
		case s.events <- ev:
		case <-s.cancelled:
			return
		}
	}
}

func (s *streamSession) fail(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = &StreamError{Err: err}
		s.closing = true
		s.mu.Unlock()
		if s.raw != nil {
			s.raw.Close()
		}
	})
}
