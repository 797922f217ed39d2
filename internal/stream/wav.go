package stream

import (
	"encoding/binary"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rajeshceg3/AmbientSounds/internal/audio"
)

// WAVHandler serves an endless chunked WAV stream: a header with a bogus
// length followed by raw PCM. When the engine is paused the handler keeps
// the stream clock alive with silence so browsers don't stall the element.
type WAVHandler struct {
	broadcaster *Broadcaster
	log         zerolog.Logger
}

// NewWAVHandler creates a WAV stream handler.
func NewWAVHandler(b *Broadcaster, log zerolog.Logger) *WAVHandler {
	return &WAVHandler{broadcaster: b, log: log}
}

// streamHeader is a canonical 44-byte WAV header with maxed-out chunk sizes,
// the usual trick for unbounded streams.
func streamHeader() []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 0xFFFFFFFF)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], audio.Channels)
	binary.LittleEndian.PutUint32(h[24:28], audio.SampleRate)
	binary.LittleEndian.PutUint32(h[28:32], audio.SampleRate*audio.Channels*2)
	binary.LittleEndian.PutUint16(h[32:34], audio.Channels*2)
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], 0xFFFFFFFF)
	return h
}

func (h *WAVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if _, err := w.Write(streamHeader()); err != nil {
		return
	}
	flusher.Flush()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.log.Info().Int("listeners", h.broadcaster.ListenerCount()).Msg("wav listener connected")
	defer h.log.Info().Msg("wav listener disconnected")

	// While a voice is live, frames arrive every 20ms and the idle timer
	// stays ahead of them. When playback pauses, the timer takes over and
	// feeds silence at real-time rate so the element keeps a steady clock.
	silence := make([]byte, audio.FrameBytes)
	idle := time.NewTimer(3 * audio.FrameDuration)
	defer idle.Stop()

	for {
		var pcm []byte
		next := 3 * audio.FrameDuration
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			pcm = audio.SamplesToBytes(frame)
		case <-idle.C:
			pcm = silence
			next = audio.FrameDuration
		}

		if _, err := w.Write(pcm); err != nil {
			return
		}
		flusher.Flush()

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(next)
	}
}
