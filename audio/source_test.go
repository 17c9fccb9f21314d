package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

const testRate = 16000

// patternPCM returns count bytes where each byte encodes its position, so
// chunk ordering is verifiable end to end.
func patternPCM(count int) []byte {
	pcm := make([]byte, count)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}
	return pcm
}

func TestSourceChunkOrdering(t *testing.T) {
	chunkBytes := testRate * 2 / 10 // 100ms
	pcm := patternPCM(chunkBytes * 5)

	src := NewSource(NewFakeContext(pcm, testRate, false), nil, SourceConfig{SampleRate: testRate})
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	var got []byte
	for chunk := range src.Chunks() {
		if len(chunk) != chunkBytes {
			t.Fatalf("chunk size = %d, want %d", len(chunk), chunkBytes)
		}
		got = append(got, chunk...)
		if len(got) >= len(pcm) {
			break
		}
	}
	if !bytes.Equal(got, pcm) {
		t.Error("chunks not delivered in capture order")
	}
}

func TestSourceDropsWhenQueueFull(t *testing.T) {
	chunkBytes := testRate * 2 / 10
	const fed = 10
	pcm := patternPCM(chunkBytes * fed)

	// Flood mode delivers all canned PCM during Open, so with nobody
	// reading, a depth-1 queue holds one chunk and drops the rest.
	src := NewSource(NewFakeContext(pcm, testRate, false), nil, SourceConfig{
		SampleRate: testRate,
		QueueDepth: 1,
	})
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	src.Close()

	var got int
	for range src.Chunks() {
		got++
	}
	if got == 0 {
		t.Fatal("queue delivered nothing")
	}
	if got >= fed {
		t.Errorf("got %d chunks from a depth-1 queue, want fewer than %d fed", got, fed)
	}
}

func TestSourceOpenWhileOpen(t *testing.T) {
	src := NewSource(NewFakeContext(nil, testRate, false), nil, SourceConfig{SampleRate: testRate})
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	err := src.Open()
	if err == nil {
		t.Fatal("second Open should fail")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Errorf("want *DeviceError, got %T", err)
	}
	if !errors.Is(err, ErrBusy) {
		t.Errorf("want ErrBusy, got %v", err)
	}
}

func TestSourceCloseIdempotent(t *testing.T) {
	src := NewSource(NewFakeContext(nil, testRate, false), nil, SourceConfig{SampleRate: testRate})
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}

	ch := src.Chunks()
	src.Close()
	src.Close() // must be a no-op, no panic, no second sentinel

	// Drain: the channel must be closed exactly once.
	for range ch {
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}
}

func TestSourceCloseUnblocksConsumer(t *testing.T) {
	src := NewSource(NewFakeContext(nil, testRate, true), nil, SourceConfig{SampleRate: testRate})
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}

	unblocked := make(chan struct{})
	go func() {
		for range src.Chunks() {
		}
		close(unblocked)
	}()

	time.Sleep(10 * time.Millisecond)
	src.Close()

	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer still blocked after Close")
	}
}

func TestSourceReopenAfterClose(t *testing.T) {
	chunkBytes := testRate * 2 / 10
	pcm := patternPCM(chunkBytes)

	src := NewSource(NewFakeContext(pcm, testRate, false), nil, SourceConfig{SampleRate: testRate})

	for i := 0; i < 2; i++ {
		if err := src.Open(); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		chunk := <-src.Chunks()
		if !bytes.Equal(chunk, pcm) {
			t.Errorf("open %d: wrong first chunk", i)
		}
		src.Close()
	}
}
