package keymap

import (
	"time"

	"github.com/vk/weft/internal/value"
)

// Invocation is a completed chord turned into a concrete command request.
type Invocation struct {
	Command string
	Args    value.Value
	Mode    Mode // mode the chord was entered in
}

// Dispatcher is the keystroke state machine: it buffers partial chords,
// resets them after the chord timeout, and resolves completed chords into
// Invocations against the active mode's table.
type Dispatcher struct {
	set     *Set
	mode    Mode
	pending []Key
	lastKey time.Time
}

// NewDispatcher creates a dispatcher starting in the set's initial mode.
func NewDispatcher(set *Set) *Dispatcher {
	return &Dispatcher{set: set, mode: set.InitialMode()}
}

// Mode returns the active input mode.
func (d *Dispatcher) Mode() Mode { return d.mode }

// Pending returns the buffered, not yet resolved key sequence.
func (d *Dispatcher) Pending() []Key { return append([]Key(nil), d.pending...) }

// SwapSet installs a new keymap set, clearing any partial chord. The
// active mode is kept; reload never yanks the user out of their mode.
func (d *Dispatcher) SwapSet(set *Set) {
	d.set = set
	d.pending = nil
}

// HandleKey feeds one key event at the given wall-clock time. It returns
// a non-nil Invocation when a chord completed. An incomplete prefix
// buffers; a sequence matching nothing clears the buffer. The reserved
// enter-mode command switches modes here and is still returned so the
// embedder can observe it.
func (d *Dispatcher) HandleKey(k Key, now time.Time) *Invocation {
	if len(d.pending) > 0 && now.Sub(d.lastKey) > d.set.Timeout() {
		d.pending = nil
	}
	d.lastKey = now
	d.pending = append(d.pending, k)

	binding, matched, pending := d.set.match(d.mode, d.pending)
	if pending {
		return nil
	}
	d.pending = nil
	if !matched {
		return nil
	}

	inv := &Invocation{Command: binding.Command, Args: binding.Args, Mode: d.mode}
	if binding.Command == CommandEnterMode {
		if target, ok := modeArg(binding.Args); ok {
			d.mode = target
		}
	}
	return inv
}

func modeArg(args value.Value) (Mode, bool) {
	if args.Kind() != value.KindMap {
		return "", false
	}
	v, ok := args.MapGet("mode")
	if !ok || v.Kind() != value.KindString {
		return "", false
	}
	m := Mode(v.Str())
	if _, known := allModes[m]; !known {
		return "", false
	}
	return m, true
}
