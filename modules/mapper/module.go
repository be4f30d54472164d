// Package mapper provides the per-element transform node kind. It walks
// an Array input and reshapes each Map element: pluck keeps only the
// named keys, in the order named; rename rewrites keys in place. Elements
// that are not Maps pass through untouched.
package mapper

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type mapperNode struct {
	pluck  []string
	rename map[string]string
}

func (n *mapperNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Exactly(value.KindArray)}}
}

func (n *mapperNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Exactly(value.KindArray)}}
}

func (n *mapperNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	input := in["in"]
	switch input.Kind() {
	case value.KindEmpty:
		return nil, fmt.Errorf("input %q is not connected", "in")
	case value.KindError:
		return nil, fmt.Errorf("input carries an error: %s", input.ErrorMessage())
	case value.KindArray:
	default:
		return nil, fmt.Errorf("input is %s, want array", input.Kind())
	}

	out := make([]value.Value, 0, input.ArrayLen())
	for _, elem := range input.ArrayItems() {
		out = append(out, n.transform(elem))
	}
	return map[string]value.Value{"out": value.ArrayVal(out...)}, nil
}

func (n *mapperNode) transform(elem value.Value) value.Value {
	if elem.Kind() != value.KindMap {
		return elem
	}

	var entries []value.MapEntry
	if len(n.pluck) > 0 {
		for _, key := range n.pluck {
			if v, ok := elem.MapGet(key); ok {
				entries = append(entries, value.MapEntry{K: key, V: v})
			}
		}
	} else {
		for _, key := range elem.MapKeys() {
			v, _ := elem.MapGet(key)
			entries = append(entries, value.MapEntry{K: key, V: v})
		}
	}

	if len(n.rename) > 0 {
		for i, e := range entries {
			if to, ok := n.rename[e.K]; ok {
				entries[i].K = to
			}
		}
	}
	return value.MapVal(entries...)
}

func (n *mapperNode) configure(cfg value.Value) error {
	if cfg.Kind() == value.KindEmpty {
		return nil
	}
	if cfg.Kind() != value.KindMap {
		return fmt.Errorf("mapper config must be a map, got %s", cfg.Kind())
	}
	if pluck, ok := cfg.MapGet("pluck"); ok {
		if pluck.Kind() != value.KindArray {
			return fmt.Errorf("mapper pluck must be an array of key names")
		}
		n.pluck = n.pluck[:0]
		for _, k := range pluck.ArrayItems() {
			if k.Kind() != value.KindString {
				return fmt.Errorf("mapper pluck entries must be strings, got %s", k.Kind())
			}
			n.pluck = append(n.pluck, k.Str())
		}
	}
	if rename, ok := cfg.MapGet("rename"); ok {
		if rename.Kind() != value.KindMap {
			return fmt.Errorf("mapper rename must be a map of old to new key names")
		}
		for _, from := range rename.MapKeys() {
			to, _ := rename.MapGet(from)
			if to.Kind() != value.KindString {
				return fmt.Errorf("mapper rename target for %q must be a string, got %s", from, to.Kind())
			}
			n.rename[from] = to.Str()
		}
	}
	return nil
}

func (n *mapperNode) Snapshot() value.Value {
	pluck := make([]value.Value, 0, len(n.pluck))
	for _, k := range n.pluck {
		pluck = append(pluck, value.StringVal(k))
	}
	froms := make([]string, 0, len(n.rename))
	for from := range n.rename {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	renames := make([]value.MapEntry, 0, len(froms))
	for _, from := range froms {
		renames = append(renames, value.MapEntry{K: from, V: value.StringVal(n.rename[from])})
	}
	return value.MapVal(
		value.MapEntry{K: "pluck", V: value.ArrayVal(pluck...)},
		value.MapEntry{K: "rename", V: value.MapVal(renames...)},
	)
}

func (n *mapperNode) Restore(v value.Value) error { return n.configure(v) }

// Register registers the mapper kind. Config is a Map with an optional
// "pluck" Array of key names and an optional "rename" Map of old to new
// key names.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("mapper", func(cfg value.Value) (node.Node, error) {
		n := &mapperNode{rename: make(map[string]string)}
		if err := n.configure(cfg); err != nil {
			return nil, err
		}
		return n, nil
	})
}
