package audio

import (
	"encoding/binary"
	"fmt"
)

// Source is a decoded mono PCM16 stream.
type Source struct {
	Samples    []int16
	SampleRate int
}

func (s *Source) DurationSeconds() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Slice returns the samples covering [startSec, endSec). Offsets are
// clamped to the stream bounds; the returned Source shares the backing
// array with the receiver.
func (s *Source) Slice(startSec, endSec float64) *Source {
	start := int(startSec * float64(s.SampleRate))
	end := int(endSec * float64(s.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(s.Samples) {
		end = len(s.Samples)
	}
	if start > end {
		start = end
	}
	return &Source{Samples: s.Samples[start:end], SampleRate: s.SampleRate}
}

// DecodeError marks a source that could not be decoded. Submissions
// failing with it are rejected outright, never partially segmented.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode audio: %s: %v", e.Reason, e.Err)
	}
	return "decode audio: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

const (
	riffHeaderSize = 12
	chunkHeaderSize = 8
	wavFormatPCM   = 1
)

// Decode parses a RIFF/WAVE container holding PCM16 audio. Stereo input
// is downmixed to mono. Empty, truncated, or non-PCM input fails with a
// DecodeError.
func Decode(raw []byte) (*Source, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Reason: "empty source"}
	}
	if len(raw) < riffHeaderSize || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, &DecodeError{Reason: "not a RIFF/WAVE container"}
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		data       []byte
		haveFmt    bool
	)

	for off := riffHeaderSize; off+chunkHeaderSize <= len(raw); {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + chunkHeaderSize
		if size < 0 || body+size > len(raw) {
			return nil, &DecodeError{Reason: fmt.Sprintf("truncated %q chunk", id)}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, &DecodeError{Reason: "short fmt chunk"}
			}
			format := int(binary.LittleEndian.Uint16(raw[body : body+2]))
			if format != wavFormatPCM {
				return nil, &DecodeError{Reason: fmt.Sprintf("unsupported wav format %d", format)}
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			haveFmt = true
		case "data":
			data = raw[body : body+size]
		}

		// Chunks are word aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, &DecodeError{Reason: "missing fmt chunk"}
	}
	if bitDepth != 16 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported bit depth %d", bitDepth)}
	}
	if channels < 1 || channels > 2 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported channel count %d", channels)}
	}
	if sampleRate <= 0 {
		return nil, &DecodeError{Reason: "invalid sample rate"}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty data chunk"}
	}

	samples := PCMBytesToInt16(data)
	if channels == 2 {
		samples = downmixStereo(samples)
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Reason: "no samples"}
	}

	return &Source{Samples: samples, SampleRate: sampleRate}, nil
}

func downmixStereo(interleaved []int16) []int16 {
	mono := make([]int16, len(interleaved)/2)
	for i := range mono {
		l := int32(interleaved[2*i])
		r := int32(interleaved[2*i+1])
		mono[i] = int16((l + r) / 2)
	}
	return mono
}
