package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rajeshceg3/AmbientSounds/internal/catalog"
	"github.com/rajeshceg3/AmbientSounds/internal/cycler"
	"github.com/rajeshceg3/AmbientSounds/internal/engine"
	"github.com/rajeshceg3/AmbientSounds/internal/settings"
	"github.com/rajeshceg3/AmbientSounds/internal/stream"
)

type discardOutput struct{}

func (discardOutput) Write([]int16) {}
func (discardOutput) Close() error  { return nil }

func testServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.Nop()

	cat, err := catalog.New([]catalog.Sound{
		{Name: "Rain", URL: "http://127.0.0.1:1/rain.wav"},
		{Name: "Ocean Waves", URL: "http://127.0.0.1:1/ocean.wav"},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Catalog: cat,
		OpenOutput: func(ctx context.Context) (engine.Output, error) {
			return discardOutput{}, nil
		},
		Volume: 0.75,
	}, log)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	store := settings.Open(filepath.Join(t.TempDir(), "settings.json"), log)
	cyc := cycler.New(nil, time.Minute, nil, log)
	b := stream.NewBroadcaster(log)

	return New(Config{}, cat, eng, cyc, store, b, log)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return m
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestStateShape(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d", rec.Code)
	}
	m := decode(t, rec)
	for _, key := range []string{"engine", "settings", "sounds", "color", "autoHideMs", "bannerMs"} {
		if _, ok := m[key]; !ok {
			t.Errorf("state response missing %q", key)
		}
	}
	sounds, ok := m["sounds"].([]any)
	if !ok || len(sounds) != 2 {
		t.Fatalf("sounds = %v", m["sounds"])
	}
	if sounds[0] != "Rain" {
		t.Errorf("first sound = %v, want Rain", sounds[0])
	}
}

func TestVolumeValidation(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/volume", map[string]any{"volume": 5.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range volume status = %d", rec.Code)
	}
	if decode(t, rec)["error"] == nil {
		t.Error("expected error message in body")
	}

	rec = do(t, h, http.MethodPost, "/api/volume", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing volume status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/volume", map[string]any{"volume": 0.3})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid volume status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := s.store.Snapshot().Volume; got != 0.3 {
		t.Errorf("persisted volume = %v, want 0.3", got)
	}
	if got := s.engine.GetState().Volume; got != 0.3 {
		t.Errorf("engine volume = %v, want 0.3", got)
	}
}

func TestVolumeRequiresPost(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/volume", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET volume status = %d", rec.Code)
	}
}

func TestPausePersistsPreference(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}
	if s.store.Snapshot().SoundEnabled {
		t.Error("soundEnabled still true after pause")
	}
}

func TestSoundSelection(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/sound", map[string]any{"sound": "Volcano"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown sound status = %d", rec.Code)
	}

	// Engine is idle, so selecting a sound only updates the preference.
	rec = do(t, h, http.MethodPost, "/api/sound", map[string]any{"sound": "Ocean Waves"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select sound status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := s.store.Snapshot().SelectedSound; got != "Ocean Waves" {
		t.Errorf("selectedSound = %q, want Ocean Waves", got)
	}
}

func TestReducedMotion(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/reduced-motion", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing flag status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/reduced-motion", map[string]any{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("reduced motion status = %d", rec.Code)
	}
	if !s.store.Snapshot().ReducedMotion {
		t.Error("reducedMotion not persisted")
	}
	if !s.cycler.GetStatus().Reduced {
		t.Error("cycler not switched to reduced motion")
	}
}

func TestSpeedValidation(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/speed", map[string]any{"factor": -1.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative factor status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/speed", map[string]any{"factor": 2.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("speed status = %d", rec.Code)
	}
	m := decode(t, rec)
	if ms, ok := m["transitionMs"].(float64); !ok || time.Duration(ms)*time.Millisecond != 30*time.Second {
		t.Errorf("transitionMs = %v, want 30000", m["transitionMs"])
	}
}

// subscribeEvents registers a raw event channel the way handleEvents does.
func subscribeEvents(s *Server) chan []byte {
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func nextEvent(t *testing.T, ch chan []byte) map[string]any {
	t.Helper()
	select {
	case raw := <-ch:
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("decode event: %v (%s)", err, raw)
		}
		return m
	default:
		t.Fatal("no event broadcast")
		return nil
	}
}

func TestPauseEventCarriesExplicitState(t *testing.T) {
	s := testServer(t)
	ch := subscribeEvents(s)

	rec := do(t, s.Handler(), http.MethodPost, "/api/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}

	ev := nextEvent(t, ch)
	if ev["event"] != "state" {
		t.Fatalf("event = %v, want state", ev["event"])
	}
	// The paused snapshot is all zero values; they must still be present so
	// browsers can render aria-pressed and the slider from them.
	playing, ok := ev["isPlaying"].(bool)
	if !ok || playing {
		t.Errorf("isPlaying = %v (%T), want explicit false", ev["isPlaying"], ev["isPlaying"])
	}
	if _, ok := ev["selectedSound"].(string); !ok {
		t.Errorf("selectedSound missing: %v", ev)
	}
	if _, ok := ev["volume"].(float64); !ok {
		t.Errorf("volume missing: %v", ev)
	}
}

func TestVolumeChangeBroadcast(t *testing.T) {
	s := testServer(t)
	ch := subscribeEvents(s)

	rec := do(t, s.Handler(), http.MethodPost, "/api/volume", map[string]any{"volume": 0.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("volume status = %d (%s)", rec.Code, rec.Body.String())
	}

	ev := nextEvent(t, ch)
	if ev["event"] != "state" {
		t.Fatalf("event = %v, want state", ev["event"])
	}
	vol, ok := ev["volume"].(float64)
	if !ok || vol != 0 {
		t.Errorf("volume = %v (%T), want explicit 0", ev["volume"], ev["volume"])
	}
}

func TestIndexAndAppServed(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("<html")) {
		t.Fatalf("index status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/app.js", nil)
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("app.js status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rec.Code)
	}
}
