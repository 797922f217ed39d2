package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	gowav "github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnknownFormat means the payload matched none of the supported containers.
var ErrUnknownFormat = errors.New("unrecognized audio container")

// Decode sniffs the container of a fetched payload (WAV, Ogg Vorbis, or MP3),
// decodes it, and converts the result to the engine format.
func Decode(data []byte) (*Buffer, error) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return decodeWAV(data)
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return decodeVorbis(data)
	case len(data) >= 3 && (bytes.Equal(data[0:3], []byte("ID3")) || (data[0] == 0xFF && data[1]&0xE0 == 0xE0)):
		return decodeMP3(data)
	default:
		return nil, ErrUnknownFormat
	}
}

func decodeWAV(data []byte) (*Buffer, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: invalid file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || pcm.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: missing format chunk")
	}

	samples := make([]int16, len(pcm.Data))
	switch dec.BitDepth {
	case 8:
		for i, v := range pcm.Data {
			samples[i] = int16((v - 128) << 8)
		}
	case 16:
		for i, v := range pcm.Data {
			samples[i] = int16(v)
		}
	case 24:
		for i, v := range pcm.Data {
			samples[i] = int16(v >> 8)
		}
	case 32:
		for i, v := range pcm.Data {
			samples[i] = int16(v >> 16)
		}
	default:
		return nil, fmt.Errorf("wav: unsupported bit depth %d", dec.BitDepth)
	}

	return Convert(samples, pcm.Format.SampleRate, pcm.Format.NumChannels)
}

func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	return Convert(BytesToSamples(raw), dec.SampleRate(), 2)
}

func decodeVorbis(data []byte) (*Buffer, error) {
	floats, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	samples := make([]int16, len(floats))
	for i, f := range floats {
		v := float64(f) * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}
	return Convert(samples, format.SampleRate, format.Channels)
}
