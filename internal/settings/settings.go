// Package settings persists the user's flat preference record as a single
// JSON file. Reads merge onto defaults so old blobs survive new keys; writes
// are validated and flushed synchronously. Storage failures degrade to the
// in-memory record and are logged, never surfaced to callers.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Settings is the persisted record. The field set is fixed; unknown keys in
// a persisted blob are ignored on read and rejected on write.
type Settings struct {
	SoundEnabled  bool    `json:"soundEnabled"`
	SelectedSound string  `json:"selectedSound"`
	Volume        float64 `json:"volume"`
	VisualEnabled bool    `json:"visualEnabled"`
	ReducedMotion bool    `json:"reducedMotion"`
	LastUsed      string  `json:"lastUsed"`
	SessionCount  int     `json:"sessionCount"`
}

// Defaults returns the record used when nothing (or garbage) is on disk.
func Defaults() Settings {
	return Settings{
		SoundEnabled:  true,
		SelectedSound: "Rain",
		Volume:        0.75,
		VisualEnabled: true,
	}
}

// knownKeys are the Settings field names as they appear on disk.
var knownKeys = map[string]struct{}{
	"soundEnabled":  {},
	"selectedSound": {},
	"volume":        {},
	"visualEnabled": {},
	"reducedMotion": {},
	"lastUsed":      {},
	"sessionCount":  {},
}

// Store owns the record and its file.
type Store struct {
	path string
	log  zerolog.Logger

	mu    sync.Mutex
	cur   Settings
	extra map[string]json.RawMessage // unrecognized persisted keys, round-tripped untouched
}

// Open loads the record from path. A missing file yields defaults silently;
// a corrupt file yields defaults with a logged warning. Open never fails.
func Open(path string, log zerolog.Logger) *Store {
	s := &Store{path: path, log: log, cur: Defaults()}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("settings unreadable, using defaults")
		}
		return s
	}

	merged := Defaults()
	if err := json.Unmarshal(b, &merged); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("settings corrupt, using defaults")
		return s
	}
	// Keys this version doesn't know about are carried along so a write
	// never strips a newer (or older) version's fields.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err == nil {
		for k, v := range raw {
			if _, known := knownKeys[k]; known {
				continue
			}
			if s.extra == nil {
				s.extra = make(map[string]json.RawMessage)
			}
			s.extra[k] = v
		}
	}
	// Persisted values go through the same validation as writes.
	if merged.Volume < 0 || merged.Volume > 1 {
		merged.Volume = Defaults().Volume
	}
	if merged.SelectedSound == "" {
		merged.SelectedSound = Defaults().SelectedSound
	}
	s.cur = merged
	return s
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Set validates and applies one key, then persists. Invalid values and
// unknown keys are rejected with an error and no mutation.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	switch key {
	case "volume":
		v, ok := toFloat(value)
		if !ok || v < 0 || v > 1 {
			return fmt.Errorf("settings: volume must be a number in [0,1], got %v", value)
		}
		next.Volume = v
	case "selectedSound":
		v, ok := value.(string)
		if !ok || v == "" {
			return fmt.Errorf("settings: selectedSound must be a non-empty string")
		}
		next.SelectedSound = v
	case "soundEnabled":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("settings: soundEnabled must be a bool")
		}
		next.SoundEnabled = v
	case "visualEnabled":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("settings: visualEnabled must be a bool")
		}
		next.VisualEnabled = v
	case "reducedMotion":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("settings: reducedMotion must be a bool")
		}
		next.ReducedMotion = v
	default:
		return fmt.Errorf("settings: unknown key %q", key)
	}

	s.cur = next
	s.persistLocked()
	return nil
}

// IncrementSession bumps the session counter and stamps last-used in one
// logical write.
func (s *Store) IncrementSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.SessionCount++
	s.cur.LastUsed = time.Now().UTC().Format(time.RFC3339)
	s.persistLocked()
}

// persistLocked writes the record atomically (temp file + rename). Failures
// are logged; the in-memory record stays authoritative.
func (s *Store) persistLocked() {
	b, err := s.marshalLocked()
	if err != nil {
		s.log.Error().Err(err).Msg("settings marshal failed")
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error().Err(err).Str("dir", dir).Msg("settings dir unavailable")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", tmp).Msg("settings write failed")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("settings rename failed")
	}
}

// marshalLocked renders the record plus any carried-along unknown keys.
func (s *Store) marshalLocked() ([]byte, error) {
	if len(s.extra) == 0 {
		return json.MarshalIndent(s.cur, "", "  ")
	}
	b, err := json.Marshal(s.cur)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		out[k] = v
	}
	return json.MarshalIndent(out, "", "  ")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
