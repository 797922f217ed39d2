// Package speaker plays the ambient mix on the host's audio device. It is
// optional: the browser stream works without it, but when enabled its device
// context is what makes engine initialization genuinely fallible.
package speaker

import (
	"context"
	"io"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog"

	"github.com/rajeshceg3/AmbientSounds/internal/audio"
	"github.com/rajeshceg3/AmbientSounds/internal/stream"
)

// Speaker feeds broadcaster frames into an oto player.
type Speaker struct {
	ctx         *oto.Context
	ready       chan struct{}
	broadcaster *stream.Broadcaster
	log         zerolog.Logger
}

// Open constructs the device context. Fails when no usable audio device
// exists (headless hosts, busy devices).
func Open(b *stream.Broadcaster, log zerolog.Logger) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(audio.SampleRate, audio.Channels, 2)
	if err != nil {
		return nil, err
	}
	return &Speaker{ctx: ctx, ready: ready, broadcaster: b, log: log}, nil
}

// Run subscribes to the broadcaster and plays until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}

	listener := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(listener)

	player := s.ctx.NewPlayer(&pcmReader{listener: listener})
	player.Play()
	s.log.Info().Msg("local speaker output started")

	<-ctx.Done()
	player.Close()
}

// pcmReader adapts the frame channel to the byte reader oto consumes,
// substituting silence when playback is paused.
type pcmReader struct {
	listener *stream.Listener
	rem      []byte
	silence  []byte
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if len(r.rem) == 0 {
		if r.silence == nil {
			r.silence = make([]byte, audio.FrameBytes)
		}
		select {
		case frame, ok := <-r.listener.C:
			if !ok {
				return 0, io.EOF
			}
			r.rem = audio.SamplesToBytes(frame)
		case <-r.listener.Done():
			return 0, io.EOF
		case <-time.After(audio.FrameDuration):
			r.rem = r.silence
		}
	}
	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}
