package audio

import "fmt"

// Convert takes interleaved samples at an arbitrary rate/channel count and
// produces a Buffer in the engine format: stereo is kept, mono is duplicated
// onto both channels, extra channels are dropped, and the rate is linearly
// resampled to SampleRate.
func Convert(samples []int16, rate, channels int) (*Buffer, error) {
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("convert: bad format %dHz/%dch", rate, channels)
	}

	stereo := toStereo(samples, channels)
	if rate != SampleRate {
		stereo = resampleStereo(stereo, rate)
	}
	return NewBuffer(stereo), nil
}

func toStereo(samples []int16, channels int) []int16 {
	if channels == Channels {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames*Channels)
	for f := 0; f < frames; f++ {
		l := samples[f*channels]
		r := l
		if channels > 1 {
			r = samples[f*channels+1]
		}
		out[f*2] = l
		out[f*2+1] = r
	}
	return out
}

// resampleStereo converts interleaved stereo samples from the given rate to
// SampleRate using linear interpolation. Good enough for ambient loops; no
// anti-alias filtering.
func resampleStereo(in []int16, from int) []int16 {
	inFrames := len(in) / Channels
	if inFrames < 2 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(SampleRate) / int64(from))
	out := make([]int16, outFrames*Channels)
	step := float64(from) / float64(SampleRate)

	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		if i >= inFrames-1 {
			i = inFrames - 2
		}
		frac := pos - float64(i)
		for ch := 0; ch < Channels; ch++ {
			a := float64(in[i*Channels+ch])
			b := float64(in[(i+1)*Channels+ch])
			out[f*Channels+ch] = int16(a + (b-a)*frac)
		}
	}
	return out
}
