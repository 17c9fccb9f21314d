package audio

import (
	"sync"

	"voicedesk/log"
)

const (
	// One chunk is 100ms of 16-bit mono PCM at the configured rate.
	chunkMs = 100

	defaultQueueDepth = 64
)

type SourceConfig struct {
	SampleRate uint32
	QueueDepth int // bounded chunk queue capacity; 0 means defaultQueueDepth
}

// Source owns one exclusive capture session on a microphone. The hardware
// callback runs on the audio subsystem's thread and communicates with the
// consumer only through the bounded chunk channel: enqueue never blocks, a
// full queue drops the chunk and is logged, and closing the channel is the
// end-of-stream sentinel. A Source is restartable: Close then Open starts a
// fresh session with a fresh channel.
type Source struct {
	ctx    Context
	device *DeviceInfo
	cfg    SourceConfig

	mu      sync.Mutex
	capture CaptureDevice
	chunks  chan []byte
	open    bool

	fillMu  sync.Mutex
	stopped bool
	pending []byte
	dropped int
}

func NewSource(ctx Context, device *DeviceInfo, cfg SourceConfig) *Source {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	return &Source{ctx: ctx, device: device, cfg: cfg}
}

func (s *Source) chunkBytes() int {
	return int(s.cfg.SampleRate) * 2 * chunkMs / 1000
}

// Open acquires the capture device and starts filling the chunk queue.
// Opening an already-open Source fails fast with ErrBusy; device acquisition
// failures are reported as *DeviceError and are not retried here.
func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return &DeviceError{Op: "open", Err: ErrBusy}
	}

	capture, err := s.ctx.NewCapture(s.device, CaptureConfig{
		SampleRate: s.cfg.SampleRate,
		Channels:   1,
	})
	if err != nil {
		return &DeviceError{Op: "open", Err: err}
	}

	s.fillMu.Lock()
	s.stopped = false
	s.pending = nil
	s.dropped = 0
	s.fillMu.Unlock()

	s.chunks = make(chan []byte, s.cfg.QueueDepth)
	capture.SetCallback(s.fill)

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return &DeviceError{Op: "start", Err: err}
	}

	s.capture = capture
	s.open = true
	return nil
}

// Chunks returns the queue for the current session. The channel is closed by
// Close; a closed channel is the only end-of-stream signal a consumer sees.
func (s *Source) Chunks() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// fill runs on the audio subsystem's execution context. It assembles fixed
// 100ms chunks from whatever frame sizes the hardware delivers and hands them
// over without ever blocking the callback.
func (s *Source) fill(data []byte, _ uint32) {
	size := s.chunkBytes()

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.stopped {
		return
	}

	s.pending = append(s.pending, data...)
	for len(s.pending) >= size {
		chunk := make([]byte, size)
		copy(chunk, s.pending[:size])
		s.pending = s.pending[size:]

		select {
		case s.chunks <- chunk:
		default:
			// Queue full: the consumer stalled. Dropping is a capacity error
			// and must not pass silently.
			s.dropped++
			if s.dropped == 1 {
				log.Warn("audio chunk queue full, dropping")
			}
		}
	}
}

// Close stops the hardware callback, releases the device, and closes the
// chunk channel so any blocked consumer unblocks. Idempotent: a second Close
// is a no-op and delivers no second sentinel.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}

	s.capture.Stop()
	s.capture.ClearCallback()
	s.capture.Close()
	s.capture = nil

	s.fillMu.Lock()
	s.stopped = true
	dropped := s.dropped
	s.pending = nil
	s.fillMu.Unlock()

	close(s.chunks)
	s.open = false

	if dropped > 0 {
		log.Warnf("capture session dropped %d chunks", dropped)
	}
}
