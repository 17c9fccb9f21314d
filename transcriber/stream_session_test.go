package transcriber

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStreamSingleFinalThenCancel(t *testing.T) {
	fake := NewFake(
		Event{Text: "the printer"},
		Event{Text: "the printer on floor 3", Final: true},
		Event{Text: "trailing", Final: true},
	)

	sess, err := fake.Stream(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}

	var finals int
	var got string
	for ev := range sess.Events() {
		if !ev.Final {
			continue
		}
		finals++
		got = ev.Text
		break // act on the first final only
	}
	sess.Cancel()
	sess.Cancel() // idempotent

	if finals != 1 {
		t.Errorf("acted on %d finals, want 1", finals)
	}
	if got != "the printer on floor 3" {
		t.Errorf("final text = %q", got)
	}
	if err := sess.Err(); err != nil {
		t.Errorf("Err() = %v after clean cancel", err)
	}
}

func TestStreamTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	fake := &Fake{Scripts: []FakeScript{{
		Events: []Event{{Text: "partial"}},
		Err:    boom,
	}}}

	sess, err := fake.Stream(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}

	var sawFinal bool
	for ev := range sess.Events() {
		if ev.Final {
			sawFinal = true
		}
	}
	if sawFinal {
		t.Error("no final event was scripted")
	}

	var streamErr *StreamError
	if !errors.As(sess.Err(), &streamErr) {
		t.Fatalf("want *StreamError, got %v", sess.Err())
	}
	if !errors.Is(sess.Err(), boom) {
		t.Errorf("want wrapped %v, got %v", boom, sess.Err())
	}
}

func TestStreamDialError(t *testing.T) {
	fake := &Fake{Scripts: []FakeScript{{DialErr: errors.New("no route to host")}}}

	sess, err := fake.Stream(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case _, ok := <-sess.Events():
		if ok {
			t.Fatal("expected closed events channel on dial failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}

	var streamErr *StreamError
	if !errors.As(sess.Err(), &streamErr) {
		t.Errorf("want *StreamError, got %v", sess.Err())
	}
}

func TestStreamSuppressesEmptyTranscripts(t *testing.T) {
	fake := NewFake(
		Event{Text: ""},
		Event{Text: "", Final: true},
		Event{Text: "hello", Final: true},
	)

	sess, err := fake.Stream(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Cancel()

	ev := <-sess.Events()
	if ev.Text != "hello" || !ev.Final {
		t.Errorf("first delivered event = %+v, want final %q", ev, "hello")
	}
}

func TestFeedAfterCancelDoesNotBlock(t *testing.T) {
	fake := NewFake(Event{Text: "done", Final: true})

	sess, err := fake.Stream(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	<-sess.Events()
	sess.Cancel()

	doneCh := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			sess.Feed(make([]byte, 3200))
		}
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Feed blocked after Cancel")
	}
}

func TestDeepgramQuery(t *testing.T) {
	d := NewDeepgram("key")
	q := d.query(Config{
		SampleRate:  16000,
		Language:    "en-US",
		Punctuate:   true,
		PhraseHints: []string{"printer", "elevator"},
	})

	if got := q.Get("encoding"); got != "linear16" {
		t.Errorf("encoding = %q", got)
	}
	if got := q.Get("sample_rate"); got != "16000" {
		t.Errorf("sample_rate = %q", got)
	}
	if got := q.Get("language"); got != "en-US" {
		t.Errorf("language = %q", got)
	}
	if got := q.Get("punctuate"); got != "true" {
		t.Errorf("punctuate = %q", got)
	}
	if got := q["keywords"]; len(got) != 2 {
		t.Errorf("keywords = %v, want 2 entries", got)
	}
	if got := q.Get("model"); got != defaultModel {
		t.Errorf("model = %q", got)
	}
}
