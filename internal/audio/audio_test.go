package audio

import (
	"testing"
	"time"
)

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

func TestBufferPadsToFrameBoundary(t *testing.T) {
	b := NewBuffer(make([]int16, FrameSamples+10))
	if b.FrameCount() != 2 {
		t.Fatalf("FrameCount = %d, want 2 (tail padded with silence)", b.FrameCount())
	}
	tail := b.Frame(1)
	if tail[len(tail)-1] != 0 {
		t.Error("padding samples should be silence")
	}
	if b.Duration() != 2*FrameDuration {
		t.Errorf("Duration = %v, want %v", b.Duration(), 2*FrameDuration)
	}
}

func TestBufferEmpty(t *testing.T) {
	b := NewBuffer(nil)
	if b.FrameCount() != 0 {
		t.Errorf("empty buffer FrameCount = %d, want 0", b.FrameCount())
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in, 0, 1); got != tt.want {
			t.Errorf("Clamp(%v, 0, 1) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyGainUnity(t *testing.T) {
	src := []int16{1000, -1000, 500, -500}
	dst := make([]int16, len(src))
	ApplyGain(dst, src, 1.0)
	for i, v := range dst {
		if v != src[i] {
			t.Errorf("unity gain sample[%d] = %d, want %d", i, v, src[i])
		}
	}
}

func TestApplyGainHalf(t *testing.T) {
	src := []int16{1000, -1000}
	dst := make([]int16, len(src))
	ApplyGain(dst, src, 0.5)
	if dst[0] != 500 || dst[1] != -500 {
		t.Errorf("half gain = %v, want [500 -500]", dst)
	}
}

func TestApplyGainClips(t *testing.T) {
	src := []int16{32767, -32768}
	dst := make([]int16, len(src))
	ApplyGain(dst, src, 2.0)
	if dst[0] != 32767 {
		t.Errorf("positive clip = %d, want 32767", dst[0])
	}
	if dst[1] != -32768 {
		t.Errorf("negative clip = %d, want -32768", dst[1])
	}
}

func TestApplyGainZeroSilences(t *testing.T) {
	src := []int16{12345, -6789}
	dst := make([]int16, len(src))
	ApplyGain(dst, src, 0)
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("zero gain = %v, want silence", dst)
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	buf := SamplesToBytes(original)
	if len(buf) != len(original)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(original)*2)
	}
	recovered := BytesToSamples(buf)
	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}

func TestBytesToSamplesOddTail(t *testing.T) {
	got := BytesToSamples([]byte{0x00, 0x01, 0xFF})
	if len(got) != 1 || got[0] != 256 {
		t.Errorf("BytesToSamples odd input = %v, want [256]", got)
	}
}

func TestConvertMonoUpmix(t *testing.T) {
	mono := []int16{100, 200, 300}
	b, err := Convert(mono, SampleRate, 1)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	frame := b.Frame(0)
	if frame[0] != 100 || frame[1] != 100 || frame[2] != 200 || frame[3] != 200 {
		t.Errorf("mono upmix frame head = %v, want [100 100 200 200 ...]", frame[:4])
	}
}

func TestConvertStereoPassthrough(t *testing.T) {
	stereo := []int16{1, 2, 3, 4}
	b, err := Convert(stereo, SampleRate, 2)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	frame := b.Frame(0)
	for i, want := range stereo {
		if frame[i] != want {
			t.Errorf("stereo passthrough sample[%d] = %d, want %d", i, frame[i], want)
		}
	}
}

func TestConvertResampleLength(t *testing.T) {
	// One second of 24kHz stereo should become ~one second at 48kHz.
	in := make([]int16, 24000*2)
	b, err := Convert(in, 24000, 2)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if b.Duration() < 990*time.Millisecond || b.Duration() > 1010*time.Millisecond {
		t.Errorf("resampled duration = %v, want ~1s", b.Duration())
	}
}

func TestConvertBadFormat(t *testing.T) {
	if _, err := Convert([]int16{1, 2}, 0, 2); err == nil {
		t.Error("zero rate should fail")
	}
	if _, err := Convert([]int16{1, 2}, 48000, 0); err == nil {
		t.Error("zero channels should fail")
	}
}
