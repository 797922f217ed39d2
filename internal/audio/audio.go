// Package audio defines the engine's PCM format and the decode path that
// turns fetched sound payloads into loopable buffers.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Buffer is a fully decoded sound in the engine format (48kHz stereo s16),
// zero-padded to a whole number of frames so looping stays frame-aligned.
// Buffers live in the engine cache for the life of the process.
type Buffer struct {
	samples []int16
}

// NewBuffer wraps interleaved stereo samples, padding the tail with silence
// up to the next frame boundary.
func NewBuffer(samples []int16) *Buffer {
	if rem := len(samples) % FrameSamples; rem != 0 {
		samples = append(samples, make([]int16, FrameSamples-rem)...)
	}
	return &Buffer{samples: samples}
}

// FrameCount returns the number of whole frames in the buffer.
func (b *Buffer) FrameCount() int { return len(b.samples) / FrameSamples }

// Frame returns the i'th frame. The slice aliases the buffer; callers must
// not mutate it.
func (b *Buffer) Frame(i int) []int16 {
	return b.samples[i*FrameSamples : (i+1)*FrameSamples]
}

// Duration returns the playing time of one pass through the buffer.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.FrameCount()) * FrameDuration
}
