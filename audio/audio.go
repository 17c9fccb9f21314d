package audio

import (
	"errors"
	"fmt"
)

const WAVHeaderSize = 44

// DeviceError wraps microphone open/start/stop failures. Fatal to the current
// capture session; the supervisor owns retry policy.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ErrBusy is reported when a Source is opened while a capture session is
// already running on it.
var ErrBusy = errors.New("capture device already open")

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
