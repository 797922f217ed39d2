// Package cycler drives the ambient background: a recurring timer that
// paints a random, non-immediately-repeating palette color, with adjustable
// speed and a reduced-motion static mode.
package cycler

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one palette color.
type Entry struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// fallback is painted in reduced-motion mode when the palette is empty.
var fallback = Entry{Name: "Calm", Color: "#aab7c4"}

// DefaultBase is the cycle interval before any speed adjustment.
const DefaultBase = 45 * time.Second

// DefaultPalette is the built-in set of calming hues.
func DefaultPalette() []Entry {
	return []Entry{
		{Name: "Mist", Color: "#aab7c4"},
		{Name: "Dawn", Color: "#e8c5a5"},
		{Name: "Sage", Color: "#a8b5a2"},
		{Name: "Dusk", Color: "#9a8fb8"},
		{Name: "Sea", Color: "#8fb8b2"},
		{Name: "Sand", Color: "#d4c5a9"},
	}
}

// PaintFunc receives each repaint. Called without internal locks held.
type PaintFunc func(Entry)

// Cycler owns the palette index, the pending timer, and the reduced-motion
// flag. All methods are safe for concurrent use.
type Cycler struct {
	log   zerolog.Logger
	paint PaintFunc

	mu       sync.Mutex
	palette  []Entry
	base     time.Duration
	dur      time.Duration
	lastIdx  int
	current  Entry
	timer    *time.Timer
	deadline time.Time
	running  bool
	reduced  bool
}

// Status is a snapshot for the state API.
type Status struct {
	Running  bool          `json:"running"`
	Reduced  bool          `json:"reducedMotion"`
	Interval time.Duration `json:"-"`
	Current  Entry         `json:"current"`
}

// New builds a cycler. A nil palette gets the default set; a non-positive
// base gets DefaultBase.
func New(palette []Entry, base time.Duration, paint PaintFunc, log zerolog.Logger) *Cycler {
	if palette == nil {
		palette = DefaultPalette()
	}
	if base <= 0 {
		base = DefaultBase
	}
	if paint == nil {
		paint = func(Entry) {}
	}
	return &Cycler{
		log:     log,
		paint:   paint,
		palette: palette,
		base:    base,
		dur:     base,
		lastIdx: -1,
	}
}

// Start paints immediately and schedules the next cycle. No-op if already
// running. In reduced-motion mode it paints the static color instead.
func (c *Cycler) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true

	var e Entry
	if c.reduced || len(c.palette) == 0 {
		e = c.staticEntryLocked()
	} else {
		e = c.nextLocked()
		c.scheduleLocked(c.dur)
	}
	c.current = e
	c.mu.Unlock()
	c.paint(e)
}

// Stop cancels the pending cycle.
func (c *Cycler) Stop() {
	c.mu.Lock()
	c.running = false
	c.cancelTimerLocked()
	c.mu.Unlock()
}

// SetReducedMotion switches between cycling and a static paint. Enabling
// stops the timer and paints the fixed entry; disabling restarts cycling if
// the cycler was running.
func (c *Cycler) SetReducedMotion(on bool) {
	c.mu.Lock()
	if c.reduced == on {
		c.mu.Unlock()
		return
	}
	c.reduced = on
	c.cancelTimerLocked()

	if !c.running {
		c.mu.Unlock()
		return
	}

	var e Entry
	if on || len(c.palette) == 0 {
		e = c.staticEntryLocked()
	} else {
		e = c.nextLocked()
		c.scheduleLocked(c.dur)
	}
	c.current = e
	c.mu.Unlock()
	c.paint(e)
}

// SetSpeed rescales the cycle interval to base/factor. Non-positive factors
// are logged and ignored. A cycle in flight keeps its progress: the
// remaining wait shrinks or grows proportionally instead of restarting.
func (c *Cycler) SetSpeed(factor float64) {
	if factor <= 0 {
		c.log.Warn().Float64("factor", factor).Msg("ignoring non-positive cycle speed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	oldDur := c.dur
	newDur := time.Duration(float64(c.base) / factor)
	c.dur = newDur

	if c.timer != nil && oldDur > 0 {
		remaining := time.Until(c.deadline)
		if remaining < 0 {
			remaining = 0
		}
		scaled := time.Duration(float64(remaining) * float64(newDur) / float64(oldDur))
		c.cancelTimerLocked()
		c.scheduleLocked(scaled)
	}
}

// Interval returns the current cycle duration.
func (c *Cycler) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dur
}

// GetStatus returns a snapshot.
func (c *Cycler) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Running: c.running, Reduced: c.reduced, Interval: c.dur, Current: c.current}
}

func (c *Cycler) tick() {
	c.mu.Lock()
	if !c.running || c.reduced || len(c.palette) == 0 {
		c.mu.Unlock()
		return
	}
	e := c.nextLocked()
	c.current = e
	c.scheduleLocked(c.dur)
	c.mu.Unlock()
	c.paint(e)
}

// nextLocked picks a random palette index, never repeating the previous one
// when more than one entry exists.
func (c *Cycler) nextLocked() Entry {
	n := len(c.palette)
	if n == 1 {
		c.lastIdx = 0
		return c.palette[0]
	}
	idx := rand.IntN(n)
	for idx == c.lastIdx {
		idx = rand.IntN(n)
	}
	c.lastIdx = idx
	return c.palette[idx]
}

func (c *Cycler) staticEntryLocked() Entry {
	if len(c.palette) > 0 {
		return c.palette[0]
	}
	return fallback
}

// scheduleLocked installs the next tick, always clearing any pending timer
// first so two callbacks can never be in flight.
func (c *Cycler) scheduleLocked(d time.Duration) {
	c.cancelTimerLocked()
	c.deadline = time.Now().Add(d)
	c.timer = time.AfterFunc(d, c.tick)
}

func (c *Cycler) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
