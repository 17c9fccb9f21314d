package speech

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoPlayer plays audio through the default output device. One playback
// at a time; Play blocks until the device has consumed every sample.
type MalgoPlayer struct {
	ctx *malgo.AllocatedContext
	mu  sync.Mutex
}

func NewPlayer() (*MalgoPlayer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	return &MalgoPlayer{ctx: ctx}, nil
}

func (p *MalgoPlayer) Play(ctx context.Context, a Audio) error {
	if len(a.PCM) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	channels := a.Channels
	if channels == 0 {
		channels = 1
	}
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(a.SampleRate)

	var (
		pos  atomic.Uint32
		once sync.Once
		done = make(chan struct{})
	)
	total := uint32(len(a.PCM))

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			cur := pos.Load()
			remaining := total - cur
			if remaining == 0 {
				// One extra silent pass so the last handed-over chunk has
				// actually left the device before Play returns.
				for i := range pOutput {
					pOutput[i] = 0
				}
				once.Do(func() { close(done) })
				return
			}

			want := frameCount * uint32(channels) * 2
			if want > remaining {
				want = remaining
			}
			copy(pOutput[:want], a.PCM[cur:cur+want])
			for i := want; i < uint32(len(pOutput)); i++ {
				pOutput[i] = 0
			}
			pos.Store(cur + want)
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, config, callbacks)
	if err != nil {
		return &SynthesisError{Err: err}
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return &SynthesisError{Err: err}
	}

	select {
	case <-done:
	case <-ctx.Done():
		device.Stop()
		return ctx.Err()
	}
	device.Stop()
	return nil
}

func (p *MalgoPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
