package server

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// TargetSampleRate is what the recognition backend expects from the
// server conversion path.
const TargetSampleRate = 16000

// ConvertError wraps an audio transcoding failure. Fatal to the current
// request only; the server maps it to a client error status.
type ConvertError struct {
	Err error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("audio conversion: %v", e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// convertToLinear16 normalizes an uploaded recording to raw 16-bit mono
// PCM at TargetSampleRate. WAV and FLAC containers are accepted; anything
// else is a *ConvertError.
func convertToLinear16(data []byte) ([]byte, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")):
		samples, channels, rate, err := decodeWAV(data)
		if err != nil {
			return nil, &ConvertError{Err: err}
		}
		return encodePCM(resample(downmix(samples, channels), rate, TargetSampleRate)), nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("fLaC")):
		samples, channels, rate, err := decodeFLAC(data)
		if err != nil {
			return nil, &ConvertError{Err: err}
		}
		return encodePCM(resample(downmix(samples, channels), rate, TargetSampleRate)), nil
	default:
		return nil, &ConvertError{Err: fmt.Errorf("unrecognized audio container")}
	}
}

// decodeWAV walks the RIFF chunks and returns interleaved 16-bit samples.
// Only uncompressed PCM16 is accepted.
func decodeWAV(data []byte) (samples []int16, channels int, rate int, err error) {
	if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, 0, 0, fmt.Errorf("not a WAVE file")
	}

	var (
		haveFmt bool
		bits    int
		pcm     []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("fmt chunk too short")
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported WAV format code %d, need PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if !haveFmt || pcm == nil {
		return nil, 0, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d, need 16", bits)
	}
	if channels < 1 || rate <= 0 {
		return nil, 0, 0, fmt.Errorf("invalid format: %d channels at %d Hz", channels, rate)
	}

	samples = make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples, channels, rate, nil
}

func decodeFLAC(data []byte) (samples []int16, channels int, rate int, err error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("flac parse: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels = int(info.NChannels)
	rate = int(info.SampleRate)
	shift := int(info.BitsPerSample) - 16

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("flac frame: %w", err)
		}
		n := int(frame.BlockSize)
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				v := int(sub.Samples[i])
				if shift > 0 {
					v >>= shift
				} else if shift < 0 {
					v <<= -shift
				}
				samples = append(samples, int16(v))
			}
		}
	}
	return samples, channels, rate, nil
}

// downmix averages interleaved channels into mono.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// resample converts mono samples between rates by linear interpolation.
func resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, n)
	for i := range out {
		srcPos := float64(i) * float64(from) / float64(to)
		j := int(srcPos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := srcPos - float64(j)
		out[i] = int16(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}

func encodePCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
