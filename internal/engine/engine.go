// Package engine owns the ambient playback core: a lazily-initialized audio
// output, a decode cache keyed by sound name, and a single looping voice
// routed through one gain stage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rajeshceg3/AmbientSounds/internal/audio"
	"github.com/rajeshceg3/AmbientSounds/internal/catalog"
)

// State is an immutable snapshot of the engine.
type State struct {
	IsPlaying     bool    `json:"isPlaying"`
	SelectedSound string  `json:"selectedSound"`
	Volume        float64 `json:"volume"`
	IsLoading     bool    `json:"isLoading"`
}

// Output receives fixed-size PCM frames from the active voice.
type Output interface {
	Write(frame []int16)
	Close() error
}

// OutputOpener constructs the audio output. Opening can fail (no audio
// device, stream sink unavailable); the engine then stays uninitialized and
// Init can be retried.
type OutputOpener func(ctx context.Context) (Output, error)

// Config carries the engine's injected collaborators and tunables.
type Config struct {
	Catalog      *catalog.Catalog
	OpenOutput   OutputOpener
	FetchTimeout time.Duration // per-sound download budget
	Volume       float64       // initial gain, clamped to [0,1]
	Preload      bool          // load the whole catalog after Init
}

// Engine is the ambient playback state machine. All methods are safe for
// concurrent use; overlapping Init calls and loads of the same sound join
// one in-flight operation instead of racing.
type Engine struct {
	cfg  Config
	log  zerolog.Logger
	http *http.Client

	sf singleflight.Group

	mu          sync.RWMutex
	initialized bool
	output      Output
	cache       map[string]*audio.Buffer
	gain        float64
	selected    string
	voice       *voice
	loading     int
	preloadDone chan struct{} // closed once the preload batch settles; nil if none ran
}

// New builds an engine. The catalog and output opener are required.
func New(cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if cfg.OpenOutput == nil {
		return nil, errors.New("engine: output opener is required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:   cfg,
		log:   log,
		http:  &http.Client{Timeout: cfg.FetchTimeout},
		cache: make(map[string]*audio.Buffer),
		gain:  audio.Clamp(cfg.Volume, 0, 1),
	}, nil
}

// Init constructs the audio output and, on first success, kicks off the
// preload batch. Idempotent: a second call after success returns
// immediately, and concurrent calls join the in-flight initialization.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.RLock()
	ready := e.initialized
	e.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := e.sf.Do("init", func() (any, error) {
		e.mu.RLock()
		ready := e.initialized
		e.mu.RUnlock()
		if ready {
			return nil, nil
		}

		// The output outlives whichever request happened to trigger Init,
		// so the opener must not inherit that caller's cancellation.
		out, err := e.cfg.OpenOutput(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		}

		e.mu.Lock()
		e.output = out
		e.initialized = true
		var batch chan struct{}
		if e.cfg.Preload {
			batch = make(chan struct{})
			e.preloadDone = batch
		}
		e.mu.Unlock()

		if batch != nil {
			go func() {
				defer close(batch)
				// Outlives the caller's request context on purpose: the
				// batch belongs to the engine, not to whoever triggered Init.
				e.PreloadAll(context.WithoutCancel(ctx))
			}()
		}

		e.log.Info().Float64("volume", e.volume()).Msg("audio engine initialized")
		return nil, nil
	})
	return err
}

// Initialized reports whether Init has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// LoadSound returns the decoded buffer for name, fetching and decoding on a
// cache miss. Concurrent loads of the same name share one fetch. Fails with
// ErrNotReady before Init, ErrUnknownSound for names outside the catalog,
// FetchError / DecodeError for bad downloads.
func (e *Engine) LoadSound(ctx context.Context, name string) (*audio.Buffer, error) {
	snd, ok := e.cfg.Catalog.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}

	e.mu.RLock()
	buf := e.cache[name]
	ready := e.initialized
	e.mu.RUnlock()
	if buf != nil {
		return buf, nil
	}
	if !ready {
		return nil, ErrNotReady
	}

	v, err, _ := e.sf.Do("load:"+name, func() (any, error) {
		e.mu.RLock()
		cached := e.cache[name]
		e.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		e.setLoading(1)
		defer e.setLoading(-1)

		data, err := e.fetch(ctx, snd.URL)
		if err != nil {
			return nil, err
		}
		b, err := audio.Decode(data)
		if err != nil {
			return nil, &DecodeError{Name: name, Err: err}
		}

		e.mu.Lock()
		e.cache[name] = b
		e.mu.Unlock()
		e.log.Debug().Str("sound", name).Dur("length", b.Duration()).Msg("sound cached")
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*audio.Buffer), nil
}

// PreloadAll loads every catalog entry concurrently. A failed entry is
// logged and skipped; it never aborts the rest of the batch.
func (e *Engine) PreloadAll(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(4)
	for _, name := range e.cfg.Catalog.Names() {
		g.Go(func() error {
			if _, err := e.LoadSound(ctx, name); err != nil {
				e.log.Warn().Err(err).Str("sound", name).Msg("preload failed")
			}
			return nil
		})
	}
	g.Wait()
	e.log.Info().Int("cached", e.cacheSize()).Msg("preload batch finished")
}

// Play starts looping name through the gain stage, replacing any active
// voice. It waits for an in-flight preload batch first so a play issued
// during startup rides the batch instead of racing it.
func (e *Engine) Play(ctx context.Context, name string) error {
	e.mu.RLock()
	ready := e.initialized
	batch := e.preloadDone
	e.mu.RUnlock()
	if !ready {
		return ErrNotReady
	}

	if batch != nil {
		select {
		case <-batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	buf, err := e.LoadSound(ctx, name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.stopVoiceLocked()
	v := newVoice(name, buf, e)
	e.voice = v
	e.selected = name
	e.mu.Unlock()

	go v.run()
	e.log.Info().Str("sound", name).Msg("playing")
	return nil
}

// Pause stops and releases the active voice. The selected sound is kept so
// Resume can restart it. No-op when nothing is playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	stopped := e.stopVoiceLocked()
	e.mu.Unlock()
	if stopped {
		e.log.Info().Msg("paused")
	}
}

// Stop is an alias for Pause.
func (e *Engine) Stop() { e.Pause() }

// Resume replays the selected sound from the beginning. Ambient loops make
// positional resume pointless, so none is kept. No-op while playing or when
// nothing was ever selected.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.RLock()
	playing := e.voice != nil
	selected := e.selected
	e.mu.RUnlock()
	if playing || selected == "" {
		return nil
	}
	return e.Play(ctx, selected)
}

// SetVolume clamps v to [0,1] and applies it. Before Init the value is
// remembered and takes effect with the first voice.
func (e *Engine) SetVolume(v float64) {
	clamped := audio.Clamp(v, 0, 1)
	e.mu.Lock()
	e.gain = clamped
	e.mu.Unlock()
}

// GetState returns a snapshot of the engine.
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		IsPlaying:     e.voice != nil,
		SelectedSound: e.selected,
		Volume:        e.gain,
		IsLoading:     e.loading > 0,
	}
}

// Close tears down the voice and the output.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.stopVoiceLocked()
	out := e.output
	e.output = nil
	e.initialized = false
	e.mu.Unlock()
	if out != nil {
		return out.Close()
	}
	return nil
}

// stopVoiceLocked halts the active voice exactly once and clears the
// reference. Callers hold e.mu. It does not wait for the voice goroutine;
// the voice re-checks its stop channel before emitting a frame.
func (e *Engine) stopVoiceLocked() bool {
	if e.voice == nil {
		return false
	}
	e.voice.halt()
	e.voice = nil
	return true
}

func (e *Engine) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}

func (e *Engine) volume() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gain
}

func (e *Engine) writeFrame(frame []int16) {
	e.mu.RLock()
	out := e.output
	e.mu.RUnlock()
	if out != nil {
		out.Write(frame)
	}
}

func (e *Engine) setLoading(delta int) {
	e.mu.Lock()
	e.loading += delta
	e.mu.Unlock()
}

func (e *Engine) cacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
