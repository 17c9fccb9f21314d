package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicedesk/audio"
	"voicedesk/dialogue"
	"voicedesk/speech"
	"voicedesk/transcriber"
)

func testSupervisor(stt transcriber.Transcriber, synth speech.Synthesizer, player speech.Player) (*Supervisor, *dialogue.FakeModel) {
	model := &dialogue.FakeModel{Replies: []string{"What is the issue?"}}
	engine := dialogue.NewEngine(model, dialogue.FixedFlow)
	audioCtx := audio.NewFakeContext(make([]byte, 64000), 16000, false)

	sup := NewSupervisor(audioCtx, nil, stt, engine, synth, player, Config{
		SampleRate: 16000,
		Language:   "en-US",
	})
	sup.backoff = time.Millisecond
	sup.settle = time.Millisecond
	return sup, model
}

func TestCycleHappyPath(t *testing.T) {
	stt := transcriber.NewFake(
		transcriber.Event{Text: "the printer"},
		transcriber.Event{Text: "the printer on floor 3 is jammed", Final: true},
	)
	synth := &speech.FakeSynthesizer{}
	player := &speech.FakePlayer{}
	sup, model := testSupervisor(stt, synth, player)

	if err := sup.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(sup.history) != 2 {
		t.Fatalf("history length = %d, want 2", len(sup.history))
	}
	if sup.history[0].Text != "the printer on floor 3 is jammed" {
		t.Errorf("user turn = %q", sup.history[0].Text)
	}
	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.Calls))
	}
	if len(synth.Texts) != 1 || synth.Texts[0] != "What is the issue?" {
		t.Errorf("synthesized %v", synth.Texts)
	}
	if len(player.Played) != 1 {
		t.Errorf("played %d times, want 1", len(player.Played))
	}
}

// stopAfterPlay cancels the run context once a reply has been spoken, so
// Run can be exercised end to end in a test.
type stopAfterPlay struct {
	speech.FakePlayer
	stop context.CancelFunc
}

func (p *stopAfterPlay) Play(ctx context.Context, a speech.Audio) error {
	err := p.FakePlayer.Play(ctx, a)
	p.stop()
	return err
}

func TestRunRetriesAfterStreamFailure(t *testing.T) {
	stt := &transcriber.Fake{Scripts: []transcriber.FakeScript{
		{Err: errors.New("connection reset")},
		{Events: []transcriber.Event{{Text: "the elevator is stuck", Final: true}}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	player := &stopAfterPlay{stop: cancel}
	sup, model := testSupervisor(stt, &speech.FakeSynthesizer{}, player)

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not recover from the stream failure")
	}

	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.Calls))
	}
	if len(player.Played) != 1 {
		t.Errorf("played %d times, want 1", len(player.Played))
	}
	if len(sup.history) != 2 {
		t.Errorf("history length = %d, want 2", len(sup.history))
	}
}

func TestCycleSynthesisFailureProceeds(t *testing.T) {
	stt := transcriber.NewFake(transcriber.Event{Text: "broken light in the hallway", Final: true})
	synth := &speech.FakeSynthesizer{Err: errors.New("quota exceeded")}
	player := &speech.FakePlayer{}
	sup, _ := testSupervisor(stt, synth, player)

	if err := sup.cycle(context.Background()); err != nil {
		t.Fatalf("synthesis failure must not fail the cycle: %v", err)
	}
	if len(sup.history) != 2 {
		t.Errorf("history length = %d, want 2", len(sup.history))
	}
	if len(player.Played) != 0 {
		t.Errorf("played %d times, want 0", len(player.Played))
	}
}

func TestCycleInferenceFailureLeavesHistory(t *testing.T) {
	stt := transcriber.NewFake(transcriber.Event{Text: "broken light", Final: true})
	sup, model := testSupervisor(stt, &speech.FakeSynthesizer{}, &speech.FakePlayer{})
	model.Err = errors.New("deadline exceeded")

	err := sup.cycle(context.Background())
	var infErr *dialogue.InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("want *InferenceError, got %v", err)
	}
	if len(sup.history) != 0 {
		t.Errorf("history length = %d, want 0", len(sup.history))
	}
}

func TestCycleResetOnComplete(t *testing.T) {
	stt := &transcriber.Fake{Scripts: []transcriber.FakeScript{
		{Events: []transcriber.Event{{Text: "no, that is everything", Final: true}}},
	}}
	sup, _ := testSupervisor(stt, &speech.FakeSynthesizer{}, &speech.FakePlayer{})
	sup.ResetOnComplete = true
	// Three answers are already in; the next one completes the flow.
	sup.history = dialogue.History{
		{Role: dialogue.RoleUser, Text: "floor 3"},
		{Role: dialogue.RoleAssistant, Text: "What is the issue?"},
		{Role: dialogue.RoleUser, Text: "printer jammed"},
		{Role: dialogue.RoleAssistant, Text: "Can you describe it in detail?"},
		{Role: dialogue.RoleUser, Text: "paper stuck in tray 2"},
		{Role: dialogue.RoleAssistant, Text: "Do you want to add something else?"},
	}

	if err := sup.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sup.history) != 0 {
		t.Errorf("history length = %d after reset, want 0", len(sup.history))
	}
}
