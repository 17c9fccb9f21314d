package main

import (
	"context"
	"errors"
	"time"

	"voicedesk/audio"
	"voicedesk/dialogue"
	"voicedesk/log"
	"voicedesk/speech"
	"voicedesk/transcriber"
)

type loopState int

const (
	stateIdle loopState = iota
	stateListening
	stateFinalizing
	stateResponding
	stateTerminated
)

func (s loopState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateListening:
		return "listening"
	case stateFinalizing:
		return "finalizing"
	case stateResponding:
		return "responding"
	case stateTerminated:
		return "terminated"
	}
	return "unknown"
}

const (
	retryBackoff = 2 * time.Second
	settleDelay  = time.Second
)

// Supervisor drives the standing kiosk loop: listen for one utterance,
// answer it out loud, listen again. One logical thread of control; at
// most one network call in flight at any time.
type Supervisor struct {
	audioCtx audio.Context
	device   *audio.DeviceInfo
	stt      transcriber.Transcriber
	engine   *dialogue.Engine
	synth    speech.Synthesizer
	player   speech.Player

	cfg Config

	// ResetOnComplete starts a fresh conversation once the ticket flow
	// reaches its terminal state, instead of carrying the history on.
	ResetOnComplete bool

	// Tunable in tests.
	backoff time.Duration
	settle  time.Duration

	state   loopState
	history dialogue.History
	turns   int
}

func NewSupervisor(audioCtx audio.Context, device *audio.DeviceInfo, stt transcriber.Transcriber,
	engine *dialogue.Engine, synth speech.Synthesizer, player speech.Player, cfg Config) *Supervisor {
	return &Supervisor{
		audioCtx: audioCtx,
		device:   device,
		stt:      stt,
		engine:   engine,
		synth:    synth,
		player:   player,
		cfg:      cfg,
		backoff:  retryBackoff,
		settle:   settleDelay,
	}
}

// Turns is the number of completed exchanges, for the shutdown summary.
func (s *Supervisor) Turns() int { return s.turns }

// Run loops until ctx is cancelled. Transient errors from any phase log,
// sleep a fixed backoff, and restart from a fresh capture session; the
// retry count is intentionally unbounded.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.cycle(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.state = stateTerminated
			return nil
		}

		log.Errorf("conversation cycle failed while %s, retrying in %v: %v", s.state, s.backoff, err)
		s.state = stateIdle
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			s.state = stateTerminated
			return nil
		}
	}
}

// cycle walks one utterance through the state machine. The returned error
// is always a phase failure; cancellation comes back as ctx.Err().
func (s *Supervisor) cycle(ctx context.Context) error {
	// IDLE -> LISTENING: fresh source and stream pair per utterance.
	s.state = stateIdle
	src := audio.NewSource(s.audioCtx, s.device, audio.SourceConfig{
		SampleRate: uint32(s.cfg.SampleRate),
	})
	if err := src.Open(); err != nil {
		return err
	}
	defer src.Close()

	sess, err := s.stt.Stream(ctx, transcriber.Config{
		SampleRate:  s.cfg.SampleRate,
		Language:    s.cfg.Language,
		Punctuate:   true,
		PhraseHints: s.cfg.PhraseHints,
		Model:       s.cfg.SttModel,
	})
	if err != nil {
		return err
	}
	defer sess.Cancel()

	var metrics log.TurnMetricsData
	listenStart := time.Now()

	s.state = stateListening
	utterance, err := s.listen(ctx, src, sess, &metrics)
	if err != nil {
		return err
	}
	if utterance == "" {
		// Stream drained without a final result. Nothing to answer.
		return ctx.Err()
	}
	metrics.ListenMs = time.Since(listenStart).Milliseconds()

	// FINALIZING: the mic is already closed; one model call.
	s.state = stateFinalizing
	inferStart := time.Now()
	reply, history, err := s.engine.Ask(ctx, s.history, utterance)
	if err != nil {
		return err
	}
	metrics.InferMs = time.Since(inferStart).Milliseconds()
	s.history = history
	s.turns++
	log.ConversationLine("User: " + utterance)
	log.ConversationLine("AI: " + reply)

	// RESPONDING: a synthesis or playback failure is logged and the
	// conversation continues silently, it never restarts the session.
	s.state = stateResponding
	if err := s.speak(ctx, reply, &metrics); err != nil {
		log.Errorf("spoken reply skipped: %v", err)
	}
	log.TurnMetrics(metrics)

	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.ResetOnComplete && s.engine.State(s.history) == dialogue.StateComplete {
		log.Info("ticket flow complete, starting a fresh conversation")
		s.history = nil
	}
	return ctx.Err()
}

// listen pumps capture chunks into the stream until the first final
// transcript. Ordering is fixed: on a final event the mic closes before
// the stream is cancelled and before any model call, so the assistant
// never hears itself.
func (s *Supervisor) listen(ctx context.Context, src *audio.Source, sess transcriber.Session, m *log.TurnMetricsData) (string, error) {
	chunks := src.Chunks()
	for {
		select {
		case <-ctx.Done():
			src.Close()
			sess.Cancel()
			return "", ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				// End-of-stream sentinel; keep draining events.
				chunks = nil
				continue
			}
			m.Chunks++
			sess.Feed(chunk)

		case ev, ok := <-sess.Events():
			if !ok {
				src.Close()
				if err := sess.Err(); err != nil {
					return "", err
				}
				return "", nil
			}
			if !ev.Final {
				m.Interim++
				continue
			}
			src.Close()
			sess.Cancel()
			return ev.Text, nil
		}
	}
}

func (s *Supervisor) speak(ctx context.Context, text string, m *log.TurnMetricsData) error {
	synthStart := time.Now()
	out, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	m.SynthMs = time.Since(synthStart).Milliseconds()
	m.AudioMs = out.DurationMs()

	playStart := time.Now()
	if err := s.player.Play(ctx, out); err != nil {
		return err
	}
	m.PlayMs = time.Since(playStart).Milliseconds()
	return nil
}
