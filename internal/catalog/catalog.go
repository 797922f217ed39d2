// Package catalog holds the fixed, ordered list of selectable ambient sounds.
// The catalog is built once at startup and never mutated afterwards; the
// sound name doubles as the display label and the cache/selection key.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sound is one selectable ambient source.
type Sound struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Catalog is an immutable ordered list of sounds with unique names.
type Catalog struct {
	sounds []Sound
	byName map[string]Sound
}

// Default returns the built-in sound set used when no catalog file is given.
func Default() *Catalog {
	c, _ := New([]Sound{
		{Name: "Rain", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/rain.ogg"},
		{Name: "Ocean Waves", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/ocean.ogg"},
		{Name: "Forest", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/forest.ogg"},
		{Name: "Thunderstorm", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/thunder.ogg"},
		{Name: "Campfire", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/campfire.ogg"},
		{Name: "Night Crickets", URL: "https://cdn.jsdelivr.net/gh/rajeshceg3/ambient-assets@main/crickets.ogg"},
	})
	return c
}

// New builds a catalog from the given sounds. Names are trimmed, entries with
// an empty name or URL are dropped, and duplicate names keep the first entry.
func New(sounds []Sound) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Sound)}
	for _, s := range sounds {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" || strings.TrimSpace(s.URL) == "" {
			continue
		}
		if _, dup := c.byName[s.Name]; dup {
			continue
		}
		c.byName[s.Name] = s
		c.sounds = append(c.sounds, s)
	}
	if len(c.sounds) == 0 {
		return nil, fmt.Errorf("catalog has no usable sounds")
	}
	return c, nil
}

// Load reads a catalog YAML file of the form:
//
//	sounds:
//	  - name: Rain
//	    url: https://example.com/rain.ogg
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Sounds []Sound `yaml:"sounds"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(doc.Sounds)
}

// Sounds returns the entries in catalog order.
func (c *Catalog) Sounds() []Sound {
	out := make([]Sound, len(c.sounds))
	copy(out, c.sounds)
	return out
}

// Names returns the sound names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.sounds))
	for i, s := range c.sounds {
		names[i] = s.Name
	}
	return names
}

// Find looks up a sound by name.
func (c *Catalog) Find(name string) (Sound, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Len returns the number of sounds.
func (c *Catalog) Len() int { return len(c.sounds) }
