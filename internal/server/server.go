// Package server exposes the ambient player to browsers: the embedded UI,
// a JSON control API, the audio stream endpoints, and a server-sent event
// feed for background colors, state changes, and transient errors. Handlers
// are the wiring layer: they persist settings on every user change and relay
// actions to the engine and cycler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rajeshceg3/AmbientSounds/internal/catalog"
	"github.com/rajeshceg3/AmbientSounds/internal/cycler"
	"github.com/rajeshceg3/AmbientSounds/internal/engine"
	"github.com/rajeshceg3/AmbientSounds/internal/settings"
	"github.com/rajeshceg3/AmbientSounds/internal/stream"
	"github.com/rajeshceg3/AmbientSounds/internal/web"
)

// Config holds server tunables.
type Config struct {
	Bind              string
	Port              int
	ReadHeaderTimeout time.Duration
	AutoHide          time.Duration // UI chrome inactivity window
	BannerDismiss     time.Duration // transient error banner lifetime
}

// Server wires the engine, cycler, and settings store to HTTP.
type Server struct {
	cfg     Config
	catalog *catalog.Catalog
	engine  *engine.Engine
	cycler  *cycler.Cycler
	store   *settings.Store
	wav     *stream.WAVHandler
	webrtc  *stream.WebRTCHandler
	log     zerolog.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// New builds a server.
func New(cfg Config, cat *catalog.Catalog, eng *engine.Engine, cyc *cycler.Cycler,
	store *settings.Store, b *stream.Broadcaster, log zerolog.Logger) *Server {
	if cfg.Bind == "" {
		cfg.Bind = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.AutoHide <= 0 {
		cfg.AutoHide = 4 * time.Second
	}
	if cfg.BannerDismiss <= 0 {
		cfg.BannerDismiss = 4500 * time.Millisecond
	}
	return &Server{
		cfg:     cfg,
		catalog: cat,
		engine:  eng,
		cycler:  cyc,
		store:   store,
		wav:     stream.NewWAVHandler(b, log),
		webrtc:  stream.NewWebRTCHandler(b, log),
		log:     log,
		clients: make(map[chan []byte]struct{}),
	}
}

// Addr returns the server's listen address as a URL.
func (s *Server) Addr() string {
	return fmt.Sprintf("http://%s:%d", s.cfg.Bind, s.cfg.Port)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Write(web.AppJS)
	})

	mux.Handle("/stream", s.wav)
	mux.Handle("/offer", s.webrtc)
	mux.HandleFunc("/events", s.handleEvents)

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/resume", s.handleResume)
	mux.HandleFunc("/api/volume", s.handleVolume)
	mux.HandleFunc("/api/sound", s.handleSound)
	mux.HandleFunc("/api/reduced-motion", s.handleReducedMotion)
	mux.HandleFunc("/api/speed", s.handleSpeed)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// --- server-sent events ---

// Event payloads are per-kind structs so zero values survive serialization:
// a paused engine must still announce isPlaying false and a muted one
// volume 0.
type colorEvent struct {
	Event string `json:"event"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type stateEvent struct {
	Event   string  `json:"event"`
	Playing bool    `json:"isPlaying"`
	Sound   string  `json:"selectedSound"`
	Volume  float64 `json:"volume"`
}

type errorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// BroadcastColor pushes a background repaint to every browser. Wired as the
// cycler's paint callback.
func (s *Server) BroadcastColor(e cycler.Entry) {
	s.broadcast(colorEvent{Event: "color", Name: e.Name, Color: e.Color})
}

// BroadcastError pushes a transient banner message.
func (s *Server) BroadcastError(message string) {
	s.broadcast(errorEvent{Event: "error", Message: message})
}

func (s *Server) broadcastState() {
	st := s.engine.GetState()
	s.broadcast(stateEvent{
		Event:   "state",
		Playing: st.IsPlaying,
		Sound:   st.SelectedSound,
		Volume:  st.Volume,
	})
}

func (s *Server) broadcast(ev any) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	for ch := range s.clients {
		select {
		case ch <- b:
		default:
			// slow client: drop
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 64)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": ping %d\n\n", time.Now().Unix())
			flusher.Flush()
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// --- JSON API ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	cst := s.cycler.GetStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"engine":       s.engine.GetState(),
		"settings":     s.store.Snapshot(),
		"sounds":       s.catalog.Names(),
		"color":        cst.Current.Color,
		"cycling":      cst.Running && !cst.Reduced,
		"transitionMs": cst.Interval.Milliseconds(),
		"autoHideMs":   s.cfg.AutoHide.Milliseconds(),
		"bannerMs":     s.cfg.BannerDismiss.Milliseconds(),
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Sound string `json:"sound"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.Sound == "" {
		req.Sound = s.store.Snapshot().SelectedSound
	}

	if !s.ensureReady(w, r) {
		return
	}
	if err := s.engine.Play(r.Context(), req.Sound); err != nil {
		s.engineError(w, err)
		return
	}
	s.store.Set("selectedSound", req.Sound)
	s.store.Set("soundEnabled", true)
	s.broadcastState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.engine.GetState()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.engine.Pause()
	s.store.Set("soundEnabled", false)
	s.broadcastState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.engine.GetState()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if !s.ensureReady(w, r) {
		return
	}
	if err := s.engine.Resume(r.Context()); err != nil {
		s.engineError(w, err)
		return
	}
	s.store.Set("soundEnabled", true)
	s.broadcastState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.engine.GetState()})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume required")
		return
	}
	if err := s.store.Set("volume", *req.Volume); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.SetVolume(*req.Volume)
	s.broadcastState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "volume": s.engine.GetState().Volume})
}

func (s *Server) handleSound(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Sound string `json:"sound"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sound == "" {
		writeError(w, http.StatusBadRequest, "sound required")
		return
	}
	if _, ok := s.catalog.Find(req.Sound); !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sound %q", req.Sound))
		return
	}
	if err := s.store.Set("selectedSound", req.Sound); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Switch the live voice only if something is playing.
	if s.engine.GetState().IsPlaying {
		if err := s.engine.Play(r.Context(), req.Sound); err != nil {
			s.engineError(w, err)
			return
		}
	}
	s.broadcastState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "selectedSound": req.Sound})
}

func (s *Server) handleReducedMotion(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled required")
		return
	}
	if err := s.store.Set("reducedMotion", *req.Enabled); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cycler.SetReducedMotion(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "reducedMotion": *req.Enabled})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Factor float64 `json:"factor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Factor <= 0 {
		writeError(w, http.StatusBadRequest, "factor must be positive")
		return
	}
	s.cycler.SetSpeed(req.Factor)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "transitionMs": s.cycler.Interval().Milliseconds()})
}

// ensureReady initializes the engine on demand. API calls are user gestures,
// so this is the retry point after AudioSystemUnavailable.
func (s *Server) ensureReady(w http.ResponseWriter, r *http.Request) bool {
	if s.engine.Initialized() {
		return true
	}
	if err := s.engine.Init(r.Context()); err != nil {
		s.engineError(w, err)
		return false
	}
	return true
}

// engineError maps engine failures to HTTP statuses and feeds the banner.
func (s *Server) engineError(w http.ResponseWriter, err error) {
	s.log.Warn().Err(err).Msg("engine operation failed")

	var fe *engine.FetchError
	var de *engine.DecodeError
	status := http.StatusInternalServerError
	message := "Could not play sound"

	switch {
	case errors.Is(err, engine.ErrUnknownSound):
		status = http.StatusBadRequest
		message = "That sound is not available"
	case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrAudioUnavailable):
		status = http.StatusServiceUnavailable
		message = "Audio is unavailable right now"
	case errors.As(err, &fe), errors.As(err, &de):
		status = http.StatusBadGateway
		message = "Could not load that sound"
	}

	s.BroadcastError(message)
	writeError(w, status, message)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
