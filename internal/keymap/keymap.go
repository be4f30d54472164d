// Package keymap implements the mode-driven input layer: per-mode tables
// of key chords bound to command templates, loaded from HCL, dispatched
// with a chord timeout. Prefix conflicts between chords are rejected when
// the keymap is built, never discovered at dispatch time.
package keymap

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vk/weft/internal/value"
)

// ErrAmbiguous reports two chords in the same mode that prefix-conflict
// (including exact duplicates).
var ErrAmbiguous = errors.New("ambiguous key chords")

// Mode is an input-interpretation state.
type Mode string

const (
	ModeNormal  Mode = "normal"
	ModeInsert  Mode = "insert"
	ModeCommand Mode = "command"
	ModeVisual  Mode = "visual"
)

var allModes = map[Mode]struct{}{
	ModeNormal: {}, ModeInsert: {}, ModeCommand: {}, ModeVisual: {},
}

// CommandEnterMode is the reserved binding command handled by the
// dispatcher itself: its "mode" argument names the mode to switch to.
const CommandEnterMode = "enter-mode"

// Binding maps one chord to a command template.
type Binding struct {
	Chord   []Key
	Command string
	Args    value.Value // Map of template arguments; Empty when absent
}

// Set is a validated, immutable keymap: one chord table per mode plus the
// dispatch settings.
type Set struct {
	timeout time.Duration
	initial Mode
	modes   map[Mode][]Binding
}

// DefaultChordTimeout applies when the keymap files set none.
const DefaultChordTimeout = 750 * time.Millisecond

// Compile validates bindings into a Set. It rejects unknown modes and any
// pair of chords in one mode where one is a prefix of the other
// (ErrAmbiguous); with prefix-freedom, dispatch matching is unambiguous
// and the timeout only ever cancels genuinely incomplete chords.
func Compile(modes map[Mode][]Binding, timeout time.Duration, initial Mode) (*Set, error) {
	if timeout <= 0 {
		timeout = DefaultChordTimeout
	}
	if initial == "" {
		initial = ModeNormal
	}
	if _, ok := allModes[initial]; !ok {
		return nil, fmt.Errorf("unknown initial mode %q", initial)
	}

	compiled := make(map[Mode][]Binding, len(modes))
	for mode, bindings := range modes {
		if _, ok := allModes[mode]; !ok {
			return nil, fmt.Errorf("unknown mode %q", mode)
		}
		sorted := append([]Binding(nil), bindings...)
		sort.Slice(sorted, func(i, j int) bool {
			return chordString(sorted[i].Chord) < chordString(sorted[j].Chord)
		})
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if hasPrefix(cur.Chord, prev.Chord) {
				return nil, fmt.Errorf("%w: %q and %q in mode %q",
					ErrAmbiguous, chordString(prev.Chord), chordString(cur.Chord), mode)
			}
		}
		compiled[mode] = sorted
	}

	return &Set{timeout: timeout, initial: initial, modes: compiled}, nil
}

// Timeout returns the chord timeout.
func (s *Set) Timeout() time.Duration { return s.timeout }

// InitialMode returns the mode a fresh dispatcher starts in.
func (s *Set) InitialMode() Mode { return s.initial }

// Bindings returns the bindings of one mode in chord order.
func (s *Set) Bindings(mode Mode) []Binding {
	return append([]Binding(nil), s.modes[mode]...)
}

// match looks the pending key sequence up in one mode's table. It returns
// the matched binding, or pending=true when the sequence is a proper
// prefix of some chord.
func (s *Set) match(mode Mode, pending []Key) (Binding, bool, bool) {
	for _, b := range s.modes[mode] {
		if len(b.Chord) == len(pending) && hasPrefix(b.Chord, pending) {
			return b, true, false
		}
		if hasPrefix(b.Chord, pending) {
			return Binding{}, false, true
		}
	}
	return Binding{}, false, false
}
