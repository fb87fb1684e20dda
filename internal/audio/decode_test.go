package audio

import (
	"errors"
	"math"
	"testing"
)

func TestDecode_RoundTrip(t *testing.T) {
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	src, err := Decode(EncodeWAV(samples, 16000))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if src.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", src.SampleRate)
	}
	if len(src.Samples) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(src.Samples))
	}
	for i := range samples {
		if src.Samples[i] != samples[i] {
			t.Fatalf("sample %d mismatch: %d != %d", i, src.Samples[i], samples[i])
		}
	}
	if got := src.DurationSeconds(); got != 1.0 {
		t.Errorf("expected duration 1.0s, got %f", got)
	}
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecode_NotWAV(t *testing.T) {
	_, err := Decode([]byte("this is definitely not audio data, sorry"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	wav := EncodeWAV(make([]int16, 1000), 16000)
	_, err := Decode(wav[:60])
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError for truncated input, got %v", err)
	}
}

func TestSource_Slice(t *testing.T) {
	src := &Source{Samples: make([]int16, 16000), SampleRate: 16000}

	sl := src.Slice(0.25, 0.75)
	if len(sl.Samples) != 8000 {
		t.Errorf("expected 8000 samples, got %d", len(sl.Samples))
	}

	sl = src.Slice(0.5, 5.0)
	if len(sl.Samples) != 8000 {
		t.Errorf("expected clamp to stream end, got %d samples", len(sl.Samples))
	}
}

func TestRMSDecibels(t *testing.T) {
	if got := RMSDecibels(make([]int16, 100)); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf for digital silence, got %f", got)
	}

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 16384
	}
	got := RMSDecibels(loud)
	if got > -5.9 || got < -6.2 {
		t.Errorf("expected roughly -6 dBFS for half-scale signal, got %f", got)
	}
}

func TestResampleInt16(t *testing.T) {
	in := make([]int16, 8000)
	out := ResampleInt16(in, 8000, 16000)
	if len(out) != 16000 {
		t.Errorf("expected 16000 samples after upsampling, got %d", len(out))
	}

	same := ResampleInt16(in, 16000, 16000)
	if len(same) != len(in) {
		t.Errorf("expected passthrough at equal rates")
	}
}
