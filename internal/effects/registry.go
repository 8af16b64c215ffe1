// Package effects owns the animated lighting effect state machine: a registry
// of effect algorithms, per-effect tick programs, prior state capture and
// restore, and the in-flight dispatch guard.
package effects

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aelgin/circadiand/internal/bridge"
)

// UnknownEffectError reports an effect id with no registered algorithm.
type UnknownEffectError struct {
	ID string
}

func (e *UnknownEffectError) Error() string {
	return fmt.Sprintf("unknown effect %q", e.ID)
}

// Settings tunes an effect run. Zero fields fall back to the effect's
// registered defaults.
type Settings struct {
	Speed     int           `json:"speed,omitempty"`     // 1 (slow) .. 10 (fast)
	Intensity int           `json:"intensity,omitempty"` // 1 .. 100
	Duration  time.Duration `json:"duration,omitempty"`  // 0 = run until stopped
}

// withDefaults merges settings with the effect defaults and clamps the knobs.
func (s Settings) withDefaults(d Settings) Settings {
	if s.Speed == 0 {
		s.Speed = d.Speed
	}
	if s.Intensity == 0 {
		s.Intensity = d.Intensity
	}
	if s.Duration == 0 {
		s.Duration = d.Duration
	}
	s.Speed = clamp(s.Speed, 1, 10)
	s.Intensity = clamp(s.Intensity, 1, 100)
	return s
}

// Program generates the time-varying command stream for one effect run.
// Next advances the program by one tick and reports whether the run has
// completed (one-way ramps auto-stop).
type Program interface {
	Interval() time.Duration
	Next() (bridge.State, bool)
}

// Definition describes one registered effect.
type Definition struct {
	ID              string
	Name            string
	DefaultDuration time.Duration
	DefaultSettings Settings
	New             func(Settings) Program
}

// Registry maps effect ids to their definitions. Adding an effect means
// adding one entry, not a branch in every consumer.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
}

// Get returns the definition for an effect id.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// IDs returns all registered effect ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry returns a registry with all built-in effects.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtins() {
		r.Register(def)
	}
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
