package engine

import (
	"time"

	"github.com/rajeshceg3/AmbientSounds/internal/audio"
)

// voice is the single active playback handle: one goroutine pushing gain-
// scaled frames of a looping buffer to the output at real-time rate. The
// engine owns at most one live voice; a new play tears the old one down
// first.
type voice struct {
	name string
	buf  *audio.Buffer
	eng  *Engine
	stop chan struct{}
	done chan struct{}
}

func newVoice(name string, buf *audio.Buffer, eng *Engine) *voice {
	return &voice{
		name: name,
		buf:  buf,
		eng:  eng,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (v *voice) run() {
	defer close(v.done)

	total := v.buf.FrameCount()
	if total == 0 {
		<-v.stop
		return
	}

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % total {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
		}
		// Teardown may have raced the tick; don't emit a frame after stop.
		select {
		case <-v.stop:
			return
		default:
		}

		// Fresh slice per frame: listeners keep references after fan-out.
		frame := make([]int16, audio.FrameSamples)
		audio.ApplyGain(frame, v.buf.Frame(i), v.eng.volume())
		v.eng.writeFrame(frame)
	}
}

// halt signals the voice to stop. Safe to call once only; the engine
// guards that by clearing its voice reference under lock.
func (v *voice) halt() {
	close(v.stop)
}
